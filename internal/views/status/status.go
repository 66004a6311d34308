package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dealyze/pos-demo/internal/session"
	"github.com/dealyze/pos-demo/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	State    session.State
	Endpoint string
	Queued   int
	Width    int
}

// New creates a status bar model for endpoint.
func New(endpoint string) Model {
	return Model{State: session.StateDisconnected, Endpoint: endpoint}
}

// Set updates the connection state and queue depth.
func (m *Model) Set(s session.State, queued int) {
	m.State = s
	m.Queued = queued
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	name := m.State.String()
	connStr := lipgloss.NewStyle().
		Foreground(theme.StateColor(name)).
		Render(theme.StateGlyph(name) + " " + name)

	queued := fmt.Sprintf("%d queued", m.Queued)
	if m.Queued == 0 {
		queued = theme.StyleDimmed.Render(queued)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + m.Endpoint + sep + queued

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
