package spawn

import (
	"io"
	"log/slog"
	"time"
)

// DefaultGracePeriod is how long Terminate-on-cancel waits between SIGTERM
// and SIGKILL when the spawning context is cancelled.
const DefaultGracePeriod = 5 * time.Second

// Config controls how a process is spawned. The zero value (or a nil
// *Config) captures stdout/stderr, inherits the parent environment and
// working directory, and discards library logging.
type Config struct {
	// IgnoreStdio disables stdout/stderr capture. The streams are left
	// disconnected from the parent (or handed to Stdout/Stderr verbatim
	// when those are set), the accumulated output in the Result is empty,
	// and settlement waits only for process exit, never for stream
	// closure. This matters when the child's output descriptor is held
	// open by an external consumer after the child itself has exited.
	IgnoreStdio bool

	// Dir is the working directory. Empty means the parent's.
	Dir string

	// Env is additional environment variables (key=value), merged with
	// os.Environ. Nil inherits the parent environment unchanged.
	Env []string

	// Stdin provides input to the process. When nil and capture is
	// enabled, the Handle exposes a write end instead.
	Stdin io.Reader

	// Stdout and Stderr are pass-through destinations used only when
	// IgnoreStdio is set. They are handed to the child directly and
	// nothing is accumulated. Use *os.File destinations if the child may
	// leak its descriptor to a longer-lived grandchild.
	Stdout io.Writer
	Stderr io.Writer

	// GracePeriod is how long to wait after SIGTERM before SIGKILL when
	// the context is cancelled. Defaults to DefaultGracePeriod.
	GracePeriod time.Duration

	// Logger receives debug-level lifecycle logs. Nil discards.
	Logger *slog.Logger

	// Observer receives start/settle notifications, e.g. a metrics
	// collector. Nil disables.
	Observer Observer
}

// Observer receives lifecycle notifications for spawned processes.
// Implementations must be safe for concurrent use across spawn calls.
type Observer interface {
	// Started is called after the process has been created.
	Started(pid int)

	// Settled is called exactly once when the task settles. res is the
	// successful result, or nil when err is non-nil; a failed run's
	// details are carried by the *Error inside err.
	Settled(res *Result, err error)
}

func (c *Config) gracePeriod() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return DefaultGracePeriod
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}
