package spawn

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// Event identifies a process lifecycle event observable on a Handle.
type Event string

const (
	// EventExit fires when the OS reports the process has terminated.
	EventExit Event = "exit"

	// EventClose fires when the process has terminated and, in capture
	// mode, both stdio streams have been fully drained.
	EventClose Event = "close"

	// EventError fires when the process could not be started.
	EventError Event = "error"
)

// EventInfo carries the data associated with a lifecycle event.
// Status/Signal are meaningful for exit and close events, Err for error
// events.
type EventInfo struct {
	Status int
	Signal string
	Err    error
}

// Handle is the live view of a spawned process. It is usable synchronously
// from the moment Spawn returns, independent of whether or when the task
// settles: listeners can be attached, output teed, the process signalled.
//
// The orchestrator attaches its own bookkeeping through the same emit path
// as caller listeners; neither side can suppress the other.
type Handle struct {
	// Stdin is the write end of the child's standard input. Nil when
	// Config.Stdin was supplied or capture is disabled.
	Stdin io.WriteCloser

	logger *slog.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	listeners  map[Event][]func(EventInfo)
	fired      map[Event]EventInfo
	stdoutTees []io.Writer
	stderrTees []io.Writer
}

func newHandle(logger *slog.Logger) *Handle {
	return &Handle{
		logger:    logger,
		listeners: make(map[Event][]func(EventInfo)),
		fired:     make(map[Event]EventInfo),
	}
}

// attach records the started command. Called once, before any emit.
func (h *Handle) attach(cmd *exec.Cmd) {
	h.mu.Lock()
	h.cmd = cmd
	h.mu.Unlock()
}

// Pid returns the process identifier, or 0 when the process never started.
func (h *Handle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// On registers an additional listener for the given event. Listeners are
// additive: every registered listener fires exactly once per event, in
// registration order, regardless of how many others are attached. Events
// are sticky, so a listener registered after its event has already fired
// is invoked immediately with the recorded payload.
func (h *Handle) On(event Event, fn func(EventInfo)) {
	h.mu.Lock()
	info, already := h.fired[event]
	if !already {
		h.listeners[event] = append(h.listeners[event], fn)
	}
	h.mu.Unlock()

	if already {
		fn(info)
	}
}

// emit fires an event at most once, fanning out to every listener.
func (h *Handle) emit(event Event, info EventInfo) {
	h.mu.Lock()
	if _, dup := h.fired[event]; dup {
		h.mu.Unlock()
		return
	}
	h.fired[event] = info
	fns := h.listeners[event]
	h.listeners[event] = nil
	h.mu.Unlock()

	h.logger.Debug("handle_event",
		"event", string(event),
		"status", info.Status,
		"signal", info.Signal,
	)
	for _, fn := range fns {
		fn(info)
	}
}

// Tee registers extra destinations that receive stdout/stderr chunks as
// they arrive, in arrival order, alongside the orchestrator's own
// accumulators. Either writer may be nil. No-op when capture is disabled,
// since the streams are never piped into the parent. Best registered
// before the first output arrives; chunks already consumed are not
// replayed.
func (h *Handle) Tee(stdout, stderr io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if stdout != nil {
		h.stdoutTees = append(h.stdoutTees, stdout)
	}
	if stderr != nil {
		h.stderrTees = append(h.stderrTees, stderr)
	}
}

// fanOut delivers one chunk to every registered tee for the stream.
// Tee write errors are logged and the writer dropped; a broken caller
// destination must not disturb accumulation.
func (h *Handle) fanOut(stderrStream bool, chunk []byte) {
	h.mu.Lock()
	tees := h.stdoutTees
	if stderrStream {
		tees = h.stderrTees
	}
	h.mu.Unlock()

	for i, w := range tees {
		if w == nil {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			h.logger.Debug("tee_write_failed", "stderr", stderrStream, "error", err)
			h.mu.Lock()
			if stderrStream {
				h.stderrTees[i] = nil
			} else {
				h.stdoutTees[i] = nil
			}
			h.mu.Unlock()
		}
	}
}

// Terminate delivers sig (SIGTERM when nil) to the process group, falling
// back to the process itself when no group is available. Delivery is
// asynchronous: the task still settles only once the orchestrator observes
// the resulting termination.
func (h *Handle) Terminate(sig os.Signal) error {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}

	s := syscall.SIGTERM
	if sig != nil {
		ss, ok := sig.(syscall.Signal)
		if !ok {
			return cmd.Process.Signal(sig)
		}
		s = ss
	}

	// Signal the whole group so grandchildren are reached too.
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		return syscall.Kill(-pgid, s)
	}
	return cmd.Process.Signal(s)
}

// Kill delivers SIGKILL to the process group.
func (h *Handle) Kill() error {
	return h.Terminate(syscall.SIGKILL)
}
