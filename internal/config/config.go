// Package config provides configuration management for the go-spawn CLI.
package config

import "time"

// Config holds all configuration options for the go-spawn CLI.
type Config struct {
	// Command to run
	Command string   `json:"command"`
	Args    []string `json:"args"`

	// Spawn behavior
	IgnoreStdio bool          `json:"ignore_stdio"`
	Dir         string        `json:"dir"`
	Env         []string      `json:"env"`
	PassStdin   bool          `json:"pass_stdin"`
	Timeout     time.Duration `json:"timeout"` // 0 = none
	GracePeriod time.Duration `json:"grace_period"`

	// Repeat mode
	Count int `json:"count"` // 1 = single run

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = disabled
	TUIEnabled  bool   `json:"tui"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Count:       1,
		GracePeriod: 5 * time.Second,

		// Observability
		MetricsAddr: "", // Disabled unless set
		LogFormat:   "text",
	}
}
