package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// envList is a custom flag type for repeatable -env flags.
type envList []string

func (e *envList) String() string {
	return strings.Join(*e, ", ")
}

func (e *envList) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("must be KEY=VALUE, got %q", value)
	}
	*e = append(*e, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if required arguments are missing or invalid.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()
	var env envList

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-spawn - run a command, classify its termination

Usage:
  go-spawn [flags] <command> [args...]

Spawn Flags:
`)
		printFlagCategory([]string{"ignore-stdio", "cwd", "env", "stdin", "timeout", "grace"})

		fmt.Fprintf(os.Stderr, "\nRepeat Mode:\n")
		printFlagCategory([]string{"count", "tui"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"print-cmd", "check", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Exit status mirrors the child: its exit code, 128+signum when it was
terminated by a signal, 127 when it could not be launched.

Examples:
  # Run once, capture output
  go-spawn ls -la

  # Repeat 100 times with duration stats
  go-spawn -count 100 ./bench-step

  # Long-running child, output discarded, 30s cap
  go-spawn -ignore-stdio -timeout 30s ./worker

`)
	}

	// Spawn flags
	flag.BoolVar(&cfg.IgnoreStdio, "ignore-stdio", cfg.IgnoreStdio, "Do not capture child stdout/stderr")
	flag.StringVar(&cfg.Dir, "cwd", cfg.Dir, "Working directory for the child")
	flag.Var(&env, "env", "Additional KEY=VALUE environment entry (can repeat)")
	flag.BoolVar(&cfg.PassStdin, "stdin", cfg.PassStdin, "Connect the child's stdin to this process's stdin")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Terminate the child after this long (0 = none)")
	flag.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "Delay between SIGTERM and SIGKILL on timeout/cancel")

	// Repeat mode
	flag.IntVar(&cfg.Count, "count", cfg.Count, "Run the command this many times and report duration stats")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Live terminal dashboard (repeat mode only)")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	// Diagnostics
	flag.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the command that would run and exit")
	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Run preflight checks and exit")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Parse
	flag.Parse()

	cfg.Env = env

	// Positional arguments: command and its args
	args := flag.Args()
	if len(args) >= 1 {
		cfg.Command = args[0]
		cfg.Args = args[1:]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	for _, name := range names {
		f := flag.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "  -%-16s %s\n", f.Name, f.Usage)
	}
}
