package stats

import (
	"fmt"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Command is the program that was run.
	Command string

	// Runs is the number of runs requested.
	Runs int

	// MetricsAddr is the Prometheus metrics endpoint address, if any.
	MetricsAddr string
}

// FormatExitSummary formats the aggregate for display at program exit.
func FormatExitSummary(snap Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")
	b.WriteString("                       go-spawn Run Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Command:          %s\n", cfg.Command)
	fmt.Fprintf(&b, "Elapsed:          %s\n", FormatDuration(snap.Elapsed))
	fmt.Fprintf(&b, "Runs:             %d of %d\n\n", snap.Count, cfg.Runs)

	fmt.Fprintf(&b, "Succeeded:        %s\n", FormatNumber(snap.Succeeded))
	fmt.Fprintf(&b, "Failed:           %s\n", FormatNumber(snap.Failed))
	if snap.Signaled > 0 {
		fmt.Fprintf(&b, "Signaled:         %s (last: %s)\n", FormatNumber(snap.Signaled), snap.LastSignal)
	}
	if snap.LaunchFailures > 0 {
		fmt.Fprintf(&b, "Launch failures:  %s\n", FormatNumber(snap.LaunchFailures))
	}
	b.WriteString("\n")

	if snap.Measured > 0 {
		b.WriteString("Run duration:\n")
		fmt.Fprintf(&b, "  min / mean / max:   %s / %s / %s\n",
			FormatMs(snap.Min), FormatMs(snap.Mean), FormatMs(snap.Max))
		fmt.Fprintf(&b, "  p50 / p95 / p99:    %s / %s / %s\n",
			FormatMs(snap.P50), FormatMs(snap.P95), FormatMs(snap.P99))
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics:          http://%s/metrics\n", cfg.MetricsAddr)
	}

	return b.String()
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
