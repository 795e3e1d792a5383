package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-spawn/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// DoneMsg signals that the run loop has finished; the dashboard renders
// one final frame and exits.
type DoneMsg struct{}

// QuitMsg signals the TUI should exit immediately.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// SnapshotSource provides point-in-time run statistics.
type SnapshotSource interface {
	Snapshot() stats.Snapshot
}

// Config holds TUI configuration.
type Config struct {
	Command     string
	Runs        int
	MetricsAddr string
	Source      SnapshotSource
}

// Model represents the dashboard state.
type Model struct {
	command     string
	runs        int
	metricsAddr string
	source      SnapshotSource

	snap       stats.Snapshot
	lastUpdate time.Time

	width  int
	height int

	done     bool
	quitting bool
}

// New creates a new dashboard model.
func New(cfg Config) Model {
	return Model{
		command:     cfg.Command,
		runs:        cfg.Runs,
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			m.snap = m.source.Snapshot()
		}
		m.lastUpdate = time.Now()
		if m.done {
			return m, tea.Quit
		}
		return m, tickCmd()

	case DoneMsg:
		// Take a final snapshot so the last runs are not lost between
		// ticks, then quit on the next frame.
		m.done = true
		if m.source != nil {
			m.snap = m.source.Snapshot()
		}
		return m, tea.Quit

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Progress returns run completion as a fraction (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.runs == 0 {
		return 0
	}
	return float64(m.snap.Count) / float64(m.runs)
}

// =============================================================================
// Helpers for external use
// =============================================================================

// SendDone tells the dashboard the run loop has finished.
func SendDone(p *tea.Program) {
	if p != nil {
		p.Send(DoneMsg{})
	}
}

// SendQuit tells the dashboard to exit immediately.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
