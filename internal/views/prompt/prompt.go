// Package prompt renders the operator prompt panel and collects the answer
// with a single-line text input.
package prompt

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dealyze/pos-demo/internal/session"
	"github.com/dealyze/pos-demo/internal/theme"
)

// Model holds the open prompt, if any.
type Model struct {
	input  textinput.Model
	req    session.PromptRequest
	active bool
	Width  int
}

// New creates an idle prompt panel.
func New() Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 64
	return Model{input: ti}
}

// Active reports whether a prompt is waiting for an answer.
func (m Model) Active() bool { return m.active }

// Request returns the open prompt.
func (m Model) Request() session.PromptRequest { return m.req }

// Open shows req and focuses the input.
func (m *Model) Open(req session.PromptRequest) tea.Cmd {
	m.req = req
	m.active = true
	m.input.Reset()
	m.input.Placeholder = placeholder(req.Kind)
	return m.input.Focus()
}

// Submit answers the open prompt with the typed text and closes the panel.
// It returns the text it answered with.
func (m *Model) Submit() (string, bool) {
	if !m.active {
		return "", false
	}
	value := m.input.Value()
	m.req.Answer(value)
	m.active = false
	m.req = session.PromptRequest{}
	m.input.Reset()
	m.input.Blur()
	return value, true
}

// SetValue replaces the typed text.
func (m *Model) SetValue(s string) { m.input.SetValue(s) }

// Update forwards input events while a prompt is open.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	width := m.Width - 4
	if width < 20 {
		width = 20
	}
	style := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)

	if !m.active {
		return style.Render(theme.StyleDimmed.Render("no prompt open"))
	}
	style = style.BorderForeground(theme.ColorAwaiting)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleQuestion.Render(m.req.Question),
		m.input.View(),
	))
}

func placeholder(kind session.PromptKind) string {
	if kind == session.PromptBillPay {
		return "number of bills or cancel"
	}
	return "yes, no or cancel"
}
