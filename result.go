package spawn

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Result captures the outcome of a terminated process.
//
// Exactly one of the following holds for a process that actually ran:
// Status >= 0 and Signal == "" (normal exit), or Status == -1 and
// Signal != "" (terminated by a signal). A launch failure, where no process
// was ever created, has Status == -1, Signal == "" and Pid == 0.
type Result struct {
	// Pid is the process identifier, 0 when the process never started.
	Pid int

	// Stdout and Stderr hold the accumulated output, in per-stream
	// arrival order. Empty when capture was disabled.
	Stdout string
	Stderr string

	// Output mirrors [Stdout, Stderr] as an ordered pair.
	Output [2]string

	// Status is the exit code, or -1 when the process was terminated by
	// a signal or never produced an exit status.
	Status int

	// Signal is the terminating signal name ("SIGKILL" style), empty
	// when the process exited on its own.
	Signal string

	// Duration is how long the process ran.
	Duration time.Duration
}

// Exited reports whether the process ran and returned an exit status.
func (r *Result) Exited() bool {
	return r.Status >= 0
}

// Signaled reports whether the process was terminated by a signal.
func (r *Result) Signaled() bool {
	return r.Signal != ""
}

// classifyState extracts the status/signal pair from a finished process.
func classifyState(state *os.ProcessState) (status int, signal string) {
	if state == nil {
		return -1, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, unix.SignalName(ws.Signal())
	}
	return state.ExitCode(), ""
}
