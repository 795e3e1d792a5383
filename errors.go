package spawn

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrPending is returned by Task.Result before the task has settled.
var ErrPending = errors.New("spawn: task has not settled")

// ErrNotStarted is returned by Handle operations that require a running
// process when the process was never created.
var ErrNotStarted = errors.New("spawn: process not started")

// Error is the failure produced when a process exits abnormally, is
// terminated by a signal, or never starts. It carries the same structured
// fields as a successful Result so callers can branch programmatically.
type Error struct {
	Result

	// Command is the program that was (or failed to be) launched.
	Command string

	// Code is the OS-level launch error name, e.g. "ENOENT". Empty for
	// processes that started and then terminated abnormally.
	Code string

	cause      error
	site       *callSite
	completion []uintptr
}

func newExitError(command string, res *Result, cause error, site *callSite) *Error {
	return &Error{
		Result:     *res,
		Command:    command,
		cause:      cause,
		site:       site,
		completion: currentStack(1),
	}
}

func newLaunchError(command string, cause error, site *callSite) *Error {
	return &Error{
		Result:  Result{Status: -1},
		Command: command,
		Code:    launchCode(cause),
		cause:   cause,
		site:    site,
	}
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" || (e.Pid == 0 && e.Signal == ""):
		return fmt.Sprintf("spawn %s: %v", e.Command, e.cause)
	case e.Signal != "":
		return fmt.Sprintf("spawn %s: terminated by %s (pid %d)", e.Command, e.Signal, e.Pid)
	default:
		return fmt.Sprintf("spawn %s: exit status %d (pid %d)", e.Command, e.Status, e.Pid)
	}
}

// Unwrap exposes the underlying exec/OS error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Stack returns the stitched diagnostic trace: the asynchronous completion
// frames (when the failure was built after the spawn call returned), a
// boundary marker, then the frames of the original Spawn call site.
func (e *Error) Stack() string {
	return e.site.stitch(e.completion)
}

// Format renders the message alone for %v and %s, and appends the stitched
// trace for %+v.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s\n%s", e.Error(), e.Stack())
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// LaunchFailed reports whether the process never started.
func (e *Error) LaunchFailed() bool {
	return e.Code != "" || (e.Pid == 0 && e.Signal == "")
}

// launchCode maps a process-creation error to its errno name ("ENOENT",
// "EACCES", ...). A PATH search miss carries no errno, only
// exec.ErrNotFound, and is reported as ENOENT like a path lookup would be.
// Empty when the error names no OS condition at all.
func launchCode(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return unix.ErrnoName(errno)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return unix.ErrnoName(unix.ENOENT)
	}
	return ""
}

// AsError unpacks a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsLaunchError reports whether err is a spawn failure where the process
// never started (e.g. executable not found).
func IsLaunchError(err error) bool {
	e, ok := AsError(err)
	return ok && e.LaunchFailed()
}

// IsSignal reports whether err is a spawn failure caused by the named
// signal terminating the process.
func IsSignal(err error, name string) bool {
	e, ok := AsError(err)
	return ok && e.Signal == name
}

// IsExitStatus reports whether err is a spawn failure where the process
// exited on its own with the given status.
func IsExitStatus(err error, status int) bool {
	e, ok := AsError(err)
	return ok && e.Signal == "" && e.Exited() && e.Status == status
}
