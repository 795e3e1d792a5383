// Package main provides the go-spawn CLI entry point.
//
// go-spawn runs a command as a supervised child process: stdio is captured
// or passed through, termination is classified (exit status, signal, launch
// failure), and the parent's exit code mirrors the child's. With -count it
// becomes a small benchmarking harness with aggregate statistics, optional
// Prometheus metrics, and a live dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sys/unix"

	spawn "github.com/randomizedcoder/go-spawn"
	"github.com/randomizedcoder/go-spawn/internal/config"
	"github.com/randomizedcoder/go-spawn/internal/logging"
	"github.com/randomizedcoder/go-spawn/internal/metrics"
	"github.com/randomizedcoder/go-spawn/internal/preflight"
	"github.com/randomizedcoder/go-spawn/internal/stats"
	"github.com/randomizedcoder/go-spawn/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-spawn
var version = "dev"

// exitLaunchFailure is the shell convention for "command not found".
const exitLaunchFailure = 127

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-spawn %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// NewFromConfig discards all logging when the TUI is enabled so the
	// dashboard rendering is not disturbed.
	logger := logging.NewFromConfig(cfg)
	slog.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle -print-cmd mode
	if cfg.PrintCmd {
		printCommand(cfg)
		return 0
	}

	// Preflight: -check runs the checks and exits; otherwise they gate
	// startup unless skipped.
	if cfg.Check {
		result := preflight.RunAll(cfg.Command)
		fmt.Println("Preflight checks:")
		fmt.Println(result.String())
		if !result.Passed {
			return 1
		}
		return 0
	}
	if !cfg.SkipPreflight {
		result := preflight.RunAll(cfg.Command)
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "Preflight checks failed:")
			fmt.Fprintln(os.Stderr, result.String())
			fmt.Fprintln(os.Stderr, "\nUse -skip-preflight to run anyway.")
			return 1
		}
	}

	logger.Info("starting",
		"version", version,
		"command", cfg.Command,
		"count", cfg.Count,
		"timeout", cfg.Timeout.String(),
		"metrics_addr", cfg.MetricsAddr,
	)

	// Ctrl+C cancels the run context; the child group gets SIGTERM, then
	// SIGKILL after the grace period.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var collector *metrics.Collector
	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector(metrics.CollectorConfig{Version: version})
		server = metrics.NewServer(cfg.MetricsAddr, logger)
		if err := server.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), spawn.DefaultGracePeriod)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Count > 1 {
		return runRepeated(ctx, cfg, logger, collector)
	}
	return runOnce(ctx, cfg, logger, collector)
}

// runOnce runs the command a single time, streaming its output through,
// and mirrors the child's termination in the exit code: the child's exit
// status, 128+signum when signaled, 127 when it never started.
func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) int {
	task := spawn.Spawn(ctx, cfg.Command, cfg.Args, spawnConfig(cfg, logger, collector))

	if !cfg.IgnoreStdio {
		task.Handle.Tee(os.Stdout, os.Stderr)
	}

	res, err := task.Wait(nil)
	if err == nil {
		logger.Debug("run_complete", "pid", res.Pid, "duration", res.Duration.String())
		return 0
	}

	e, ok := spawn.AsError(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "go-spawn: %v\n", err)
		return 1
	}

	if e.LaunchFailed() {
		fmt.Fprintf(os.Stderr, "go-spawn: %v\n", e)
	} else if e.Signaled() {
		logger.Info("child_signaled", "signal", e.Signal, "pid", e.Pid)
	}
	return failureExit(e)
}

// failureExit maps a spawn failure to the CLI's exit code: the child's own
// status, 128+signum when signaled, 127 when it never launched. A signal
// name SignalNum does not know maps to a plain failure instead of 128+0,
// which would collide with the no-signal conventions.
func failureExit(e *spawn.Error) int {
	switch {
	case e.LaunchFailed():
		return exitLaunchFailure
	case e.Signaled():
		if num := unix.SignalNum(e.Signal); num > 0 {
			return 128 + int(num)
		}
		return 1
	default:
		return e.Status
	}
}

// runRepeated runs the command cfg.Count times sequentially, aggregating
// outcomes. Child output is not streamed; stderr is classified into logs
// and a tail of it is reported on failure.
func runRepeated(ctx context.Context, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) int {
	agg := stats.NewAggregator()

	var program *tea.Program
	tuiDone := make(chan struct{})
	if cfg.TUIEnabled {
		program = tea.NewProgram(tui.New(tui.Config{
			Command:     commandLine(cfg),
			Runs:        cfg.Count,
			MetricsAddr: cfg.MetricsAddr,
			Source:      agg,
		}), tea.WithAltScreen())
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				logger.Error("tui_failed", "error", err)
			}
		}()
	} else {
		printBanner(cfg)
	}

	failures := 0
	for i := 0; i < cfg.Count; i++ {
		if ctx.Err() != nil {
			logger.Info("run_loop_cancelled", "completed", i, "requested", cfg.Count)
			break
		}

		outputs := logging.NewOutputHandler(cfg.Command, logger, cfg.Verbose)
		task := spawn.Spawn(ctx, cfg.Command, cfg.Args, spawnConfig(cfg, logger, collector))
		if !cfg.IgnoreStdio {
			task.Handle.Tee(nil, outputs)
		}

		res, err := task.Wait(nil)
		outputs.Flush()
		agg.Record(res, err)

		if err != nil {
			failures++
			logger.Warn("run_failed", "run", i+1, "error", err)
			for _, line := range outputs.RecentLines(5) {
				logger.Warn("child_stderr", "line", line)
			}
		}
	}

	if program != nil {
		tui.SendDone(program)
		<-tuiDone
	}

	fmt.Print(stats.FormatExitSummary(agg.Snapshot(), stats.SummaryConfig{
		Command:     commandLine(cfg),
		Runs:        cfg.Count,
		MetricsAddr: cfg.MetricsAddr,
	}))

	if failures > 0 {
		return 1
	}
	return 0
}

// spawnConfig translates CLI configuration into a spawn.Config.
func spawnConfig(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) *spawn.Config {
	sc := &spawn.Config{
		IgnoreStdio: cfg.IgnoreStdio,
		Dir:         cfg.Dir,
		Env:         cfg.Env,
		GracePeriod: cfg.GracePeriod,
		Logger:      logger,
	}
	if collector != nil {
		sc.Observer = collector
	}
	if cfg.IgnoreStdio && !cfg.TUIEnabled {
		// Pass-through: the child shares the parent's terminal. Not with
		// the TUI running, since the dashboard owns the terminal; the
		// child's output then goes to the null device.
		sc.Stdout = os.Stdout
		sc.Stderr = os.Stderr
	}
	if cfg.PassStdin {
		sc.Stdin = os.Stdin
	}
	return sc
}

// printBanner prints the startup banner for repeat mode.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                            go-spawn                               ║")
	fmt.Println("║            Supervised Process Spawning and Benchmarking           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Command:     %s\n", commandLine(cfg))
	fmt.Printf("  Runs:        %d\n", cfg.Count)
	if cfg.Timeout > 0 {
		fmt.Printf("  Timeout:     %s\n", cfg.Timeout)
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printCommand prints the command line that would be run.
func printCommand(cfg *config.Config) {
	fmt.Println("# Command that would be run:")
	fmt.Println()
	fmt.Println(commandLine(cfg))
}

func commandLine(cfg *config.Config) string {
	if len(cfg.Args) == 0 {
		return cfg.Command
	}
	return cfg.Command + " " + strings.Join(cfg.Args, " ")
}
