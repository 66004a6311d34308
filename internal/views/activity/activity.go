// Package activity provides the scrollable operator activity log.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dealyze/pos-demo/internal/theme"
)

const maxEntries = 200

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Kind    string // "info", "cust", "ord", "op", "err"
	Message string
}

// Model holds activity log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

// New creates an empty activity log.
func New() Model {
	return Model{}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(kind, message string) {
	m.AddAt(time.Now(), kind, message)
}

// AddAt is Add with an explicit timestamp.
func (m *Model) AddAt(at time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{
		Time:    at,
		Kind:    kind,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	// Reset scroll to bottom on new entry.
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// KindOf classifies a session notification line.
func KindOf(line string) string {
	switch {
	case strings.HasPrefix(line, "busy:"),
		strings.HasPrefix(line, "reconnect failed"),
		strings.Contains(line, "response not sent"),
		strings.Contains(line, "malformed payload"):
		return "err"
	case strings.HasPrefix(line, "customer"):
		return "cust"
	case strings.HasPrefix(line, "order"):
		return "ord"
	case strings.HasPrefix(line, "approved"),
		strings.HasPrefix(line, "redemption"),
		strings.HasPrefix(line, "bill"),
		strings.HasPrefix(line, "you must"),
		strings.HasSuffix(line, " paid"):
		return "op"
	default:
		return "info"
	}
}

// View renders the log inside a width x height panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 4
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render(" ACTIVITY ")

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Waiting for events...")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		e := m.Entries[i]
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		kindStr := lipgloss.NewStyle().Foreground(theme.KindColor(e.Kind)).Width(4).Render(e.Kind)
		msgStr := e.Message
		if len(msgStr) > innerW-17 && innerW > 20 {
			msgStr = msgStr[:innerW-20] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, kindStr, msgStr))
	}

	parts := []string{title, strings.Join(lines, "\n")}
	if m.Offset > 0 {
		parts = append(parts, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset)))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}
