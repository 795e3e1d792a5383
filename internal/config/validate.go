package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// A command is required for every mode that runs or inspects one
	if cfg.Command == "" {
		errs = append(errs, ValidationError{
			Field:   "command",
			Message: "a command to run is required",
		})
	}

	if cfg.Count < 1 {
		errs = append(errs, ValidationError{
			Field:   "count",
			Message: "must be at least 1",
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must not be negative",
		})
	}

	if cfg.GracePeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "grace",
			Message: "must be positive",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf(`must be "json" or "text" (got %q)`, cfg.LogFormat),
		})
	}

	// TUI only makes sense for repeat mode
	if cfg.TUIEnabled && cfg.Count < 2 {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "requires -count of at least 2",
		})
	}

	return errors.Join(errs...)
}
