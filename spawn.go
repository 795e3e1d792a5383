// Package spawn launches external processes asynchronously. A single call
// produces both a live Handle, usable immediately for attaching listeners,
// teeing output, or signalling the process, and a Task that settles exactly
// once with the accumulated stdio and a termination classification: exit
// status, terminating signal, or launch failure.
//
// The calling goroutine never blocks on the child. It suspends only where
// it chooses to, in Task.Wait, and may instead manipulate the Handle or
// select on Task.Done. Failures settle as a structured *Error whose
// diagnostic trace is stitched back to the original Spawn call site.
package spawn

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Task is the deferred half of a spawn call: it settles exactly once, to a
// *Result on a clean zero exit or to a *Error otherwise. The Handle half is
// live from the moment Spawn returns and stays usable independently of
// settlement.
type Task struct {
	// Handle is the live process handle, never nil.
	Handle *Handle

	done chan struct{}
	once sync.Once
	res  *Result
	err  error
}

// Wait blocks until the task settles or ctx is done. A nil ctx waits
// indefinitely. Wait may be called any number of times from any goroutine;
// every call observes the same settlement.
func (t *Task) Wait(ctx context.Context) (*Result, error) {
	if ctx == nil {
		<-t.done
		return t.res, t.err
	}
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the task settles, for select-based
// racing against timers or other tasks.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the settlement without blocking. Before settlement it
// returns ErrPending.
func (t *Task) Result() (*Result, error) {
	select {
	case <-t.done:
		return t.res, t.err
	default:
		return nil, ErrPending
	}
}

func (t *Task) settle(res *Result, err error) {
	t.once.Do(func() {
		t.res = res
		t.err = err
		close(t.done)
	})
}

// Spawn starts command with args and returns immediately. The returned
// Task's Handle is valid synchronously; the Task settles once the process
// terminates (and, when capture is enabled, once both stdio streams have
// drained). Spawn never returns nil: launch failures settle the task with
// a *Error carrying the OS error code, and fire the Handle's error event.
//
// A nil cfg means defaults: capture stdout/stderr, inherit environment and
// working directory. Cancelling ctx terminates the process group (SIGTERM,
// then SIGKILL after the grace period); the task still settles through the
// normal classification path.
func Spawn(ctx context.Context, command string, args []string, cfg *Config) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.logger()
	site := captureCallSite(1)

	task := &Task{
		Handle: newHandle(logger),
		done:   make(chan struct{}),
	}
	h := task.Handle

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = cfg.Dir
	cmd.Env = mergeEnv(cfg.Env)

	// Own process group, so Terminate reaches grandchildren.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// On context cancellation, ask the group to exit before the
	// WaitDelay deadline forces a kill.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = cfg.gracePeriod()

	var stdoutPipe, stderrPipe io.ReadCloser
	if cfg.IgnoreStdio {
		// Streams are not piped into the orchestrator at all. Settlement
		// then depends only on process exit, never on stream closure.
		cmd.Stdout = cfg.Stdout
		cmd.Stderr = cfg.Stderr
		cmd.Stdin = cfg.Stdin
	} else {
		var err error
		if stdoutPipe, err = cmd.StdoutPipe(); err != nil {
			return failBeforeStart(task, command, err, site, cfg)
		}
		if stderrPipe, err = cmd.StderrPipe(); err != nil {
			return failBeforeStart(task, command, err, site, cfg)
		}
		if cfg.Stdin != nil {
			cmd.Stdin = cfg.Stdin
		} else if h.Stdin, err = cmd.StdinPipe(); err != nil {
			return failBeforeStart(task, command, err, site, cfg)
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Debug("spawn_failed", "command", command, "error", err)
		return failBeforeStart(task, command, err, site, cfg)
	}

	h.attach(cmd)
	pid := cmd.Process.Pid
	logger.Debug("process_started",
		"command", command,
		"pid", pid,
		"ignore_stdio", cfg.IgnoreStdio,
	)
	if cfg.Observer != nil {
		cfg.Observer.Started(pid)
	}

	go await(task, cmd, command, cfg, logger, site, start, stdoutPipe, stderrPipe)
	return task
}

// Run is Spawn followed by Wait, for callers with no use for the Handle.
// Unlike Wait(ctx), Run always waits for settlement: a cancelled ctx
// terminates the process and Run returns the resulting classification
// rather than ctx.Err(). Settlement after cancellation is bounded by the
// grace period.
func Run(ctx context.Context, command string, args []string, cfg *Config) (*Result, error) {
	return Spawn(ctx, command, args, cfg).Wait(nil)
}

// failBeforeStart settles the task as a launch failure and fires the error
// event. The sticky event lets listeners attached after Spawn returns still
// observe the failure exactly once.
func failBeforeStart(task *Task, command string, cause error, site *callSite, cfg *Config) *Task {
	failure := newLaunchError(command, cause, site)
	task.Handle.emit(EventError, EventInfo{Status: -1, Err: failure})
	task.settle(nil, failure)
	if cfg.Observer != nil {
		cfg.Observer.Settled(nil, failure)
	}
	return task
}

// await drains the stdio streams (capture mode), reaps the process, and
// settles the task with the classified outcome.
func await(task *Task, cmd *exec.Cmd, command string, cfg *Config, logger *slog.Logger,
	site *callSite, start time.Time, stdoutPipe, stderrPipe io.ReadCloser) {

	h := task.Handle
	var stdout, stderr bytes.Buffer

	if !cfg.IgnoreStdio {
		// Drain both pipes to EOF before reaping. This is the
		// wait-for-close half of the wait policy: output buffered in the
		// pipes after exit must land in the accumulators.
		var wg sync.WaitGroup
		wg.Add(2)
		go pump(h, stdoutPipe, &stdout, false, &wg)
		go pump(h, stderrPipe, &stderr, true, &wg)
		wg.Wait()
	}

	waitErr := cmd.Wait()
	status, signal := classifyState(cmd.ProcessState)

	res := &Result{
		Pid:      cmd.Process.Pid,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Status:   status,
		Signal:   signal,
		Duration: time.Since(start),
	}
	res.Output = [2]string{res.Stdout, res.Stderr}

	logger.Debug("process_exited",
		"command", command,
		"pid", res.Pid,
		"status", status,
		"signal", signal,
		"duration", res.Duration.String(),
	)

	info := EventInfo{Status: status, Signal: signal}
	h.emit(EventExit, info)
	h.emit(EventClose, info)

	if status == 0 && signal == "" {
		task.settle(res, nil)
		if cfg.Observer != nil {
			cfg.Observer.Settled(res, nil)
		}
		return
	}

	failure := newExitError(command, res, waitErr, site)
	task.settle(nil, failure)
	if cfg.Observer != nil {
		cfg.Observer.Settled(nil, failure)
	}
}

// pump copies one stream into its accumulator chunk by chunk, preserving
// arrival order, and fans each chunk out to caller tees. Runs until EOF,
// i.e. until the child side of the pipe closes.
func pump(h *Handle, r io.Reader, buf *bytes.Buffer, stderrStream bool, wg *sync.WaitGroup) {
	defer wg.Done()
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			h.fanOut(stderrStream, chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

// mergeEnv merges additional env vars with the parent environment. Nil
// inherits the parent env unchanged.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}
