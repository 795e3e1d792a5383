package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before
	// truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of recent lines kept for the
	// exit summary.
	MaxBufferedLines = 100
)

// OutputHandler processes stderr output from a spawned child process. It
// keeps a ring of recent lines for the failure summary and logs them at a
// level inferred from their content.
type OutputHandler struct {
	command string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int

	// Incomplete trailing line carried between Write calls
	partial string

	mu sync.Mutex
}

// NewOutputHandler creates a handler for output of the given command.
func NewOutputHandler(command string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		command: command,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// Write implements io.Writer so the handler can be registered as a stream
// tee. Chunks are split into lines; a trailing partial line is carried over
// to the next write.
func (h *OutputHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	pending := h.partial + string(p)
	h.mu.Unlock()

	for {
		i := strings.IndexByte(pending, '\n')
		if i < 0 {
			break
		}
		h.HandleLine(strings.TrimRight(pending[:i], "\r"))
		pending = pending[i+1:]
	}

	h.mu.Lock()
	h.partial = pending
	h.mu.Unlock()
	return len(p), nil
}

// Flush emits any buffered partial line as a final line.
func (h *OutputHandler) Flush() {
	h.mu.Lock()
	pending := h.partial
	h.partial = ""
	h.mu.Unlock()
	if pending != "" {
		h.HandleLine(pending)
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine.
func (h *OutputHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine processes a single line of child output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine logs the line at a level based on content.
func (h *OutputHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(nil, level, "child_stderr",
		"command", h.command,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "panic") ||
		strings.Contains(lower, "permission denied") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warning") ||
		strings.Contains(lower, "warn") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}
