package tui

import (
	"fmt"
	"strings"

	"github.com/randomizedcoder/go-spawn/internal/stats"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")
	b.WriteString(m.renderOutcomes())
	b.WriteString("\n")
	b.WriteString(m.renderDurations())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("go-spawn")
	cmd := mutedStyle.Render(m.command)
	return title + "  " + cmd
}

func (m Model) renderProgress() string {
	label := subtitleStyle.Render("Runs")

	barWidth := m.width - 30
	if barWidth > 50 {
		barWidth = 50
	}
	bar := RenderProgressBar(m.Progress(), barWidth)
	counts := valueStyle.Render(fmt.Sprintf(" %d/%d", m.snap.Count, m.runs))

	return label + "\n" + bar + counts
}

func (m Model) renderOutcomes() string {
	var lines []string

	lines = append(lines, RenderKeyValue("Elapsed", stats.FormatDuration(m.snap.Elapsed)))
	lines = append(lines, labelStyle.Render("Succeeded:")+
		valueGoodStyle.Render(stats.FormatNumber(m.snap.Succeeded)))
	lines = append(lines, labelStyle.Render("Failed:")+
		failureStyle(m.snap.Failed).Render(stats.FormatNumber(m.snap.Failed)))

	if m.snap.Signaled > 0 {
		line := labelStyle.Render("Signaled:") +
			valueWarnStyle.Render(stats.FormatNumber(m.snap.Signaled))
		if m.snap.LastSignal != "" {
			line += dimStyle.Render("  (last: " + m.snap.LastSignal + ")")
		}
		lines = append(lines, line)
	}
	if m.snap.LaunchFailures > 0 {
		lines = append(lines, labelStyle.Render("Launch failures:")+
			valueBadStyle.Render(stats.FormatNumber(m.snap.LaunchFailures)))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderDurations() string {
	// Nothing measurable yet
	if m.snap.Measured == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, subtitleStyle.Render("Run duration"))
	lines = append(lines, RenderKeyValue("min / mean / max",
		fmt.Sprintf("%s / %s / %s",
			stats.FormatMs(m.snap.Min), stats.FormatMs(m.snap.Mean), stats.FormatMs(m.snap.Max))))
	lines = append(lines, RenderKeyValue("p50 / p95 / p99",
		fmt.Sprintf("%s / %s / %s",
			stats.FormatMs(m.snap.P50), stats.FormatMs(m.snap.P95), stats.FormatMs(m.snap.P99))))

	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderFooter() string {
	parts := []string{"q: quit"}
	if m.metricsAddr != "" {
		parts = append(parts, "metrics: http://"+m.metricsAddr+"/metrics")
	}
	return footerStyle.Render(strings.Join(parts, "   "))
}
