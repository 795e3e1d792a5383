// Package preflight provides startup validation checks for the go-spawn CLI.
package preflight

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// String returns all check lines joined.
func (r *Result) String() string {
	lines := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// RunAll executes all preflight checks for the given command.
func RunAll(command string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 2),
		Passed: true,
	}

	binCheck := checkBinary(command)
	result.Checks = append(result.Checks, binCheck)
	if !binCheck.Passed {
		result.Passed = false
	}

	fdCheck := checkFileDescriptors()
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	return result
}

// checkBinary verifies the command resolves to an executable.
func checkBinary(command string) Check {
	path, err := exec.LookPath(command)
	if err != nil {
		return Check{
			Name:    "binary",
			Passed:  false,
			Message: fmt.Sprintf("%q not found in PATH", command),
		}
	}
	return Check{
		Name:    "binary",
		Passed:  true,
		Message: path,
	}
}

// minFileDescriptors is the soft fd limit below which a warning is raised.
// Each captured spawn holds a handful of pipe descriptors.
const minFileDescriptors = 64

func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("could not read RLIMIT_NOFILE: %v", err),
		}
	}

	if limit.Cur < minFileDescriptors {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("soft limit %d is low (want >= %d)", limit.Cur, minFileDescriptors),
		}
	}

	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Message: fmt.Sprintf("soft limit %d", limit.Cur),
	}
}
