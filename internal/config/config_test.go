package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Count != 1 {
		t.Errorf("Count = %d, want 1", cfg.Count)
	}
	if cfg.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod = %v, want 5s", cfg.GracePeriod)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty (disabled)", cfg.MetricsAddr)
	}
	if cfg.IgnoreStdio {
		t.Error("IgnoreStdio should default to false")
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command = "echo"
	cfg.Args = []string{"hi"}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing_command", func(c *Config) { c.Command = "" }, "command"},
		{"zero_count", func(c *Config) { c.Count = 0 }, "count"},
		{"negative_timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"zero_grace", func(c *Config) { c.GracePeriod = 0 }, "grace"},
		{"bad_log_format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"tui_single_run", func(c *Config) { c.TUIEnabled = true; c.Count = 1 }, "tui"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Command = "echo"
			tc.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention field %q", err, tc.field)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command = ""
	cfg.Count = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate = nil, want error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "command") || !strings.Contains(msg, "count") {
		t.Errorf("joined error should mention both fields, got %q", msg)
	}
}

func TestEnvList_Set(t *testing.T) {
	var e envList

	if err := e.Set("FOO=bar"); err != nil {
		t.Errorf("Set(FOO=bar) = %v", err)
	}
	if err := e.Set("no-equals"); err == nil {
		t.Error("Set(no-equals) should fail")
	}
	if len(e) != 1 || e[0] != "FOO=bar" {
		t.Errorf("envList = %v, want [FOO=bar]", e)
	}
	if got := e.String(); got != "FOO=bar" {
		t.Errorf("String() = %q", got)
	}
}
