// Package logging builds the go-spawn loggers and processes child stderr
// output. Everything is log/slog; the library side only ever sees a
// *slog.Logger through spawn.Config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/randomizedcoder/go-spawn/internal/config"
)

// NewFromConfig builds the CLI logger from the parsed configuration.
// -v lowers the level to debug and adds source locations. When the TUI is
// enabled all logging is discarded, since interleaved log lines would
// corrupt the alt-screen dashboard.
func NewFromConfig(cfg *config.Config) *slog.Logger {
	if cfg.TUIEnabled {
		return slog.New(slog.DiscardHandler)
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return New(os.Stderr, cfg.LogFormat, level)
}

// New builds a logger writing to w. format is "json" or "text"; anything
// else falls back to text, matching what config.Validate accepts.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
