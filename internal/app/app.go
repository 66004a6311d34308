package app

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dealyze/pos-demo/internal/session"
	"github.com/dealyze/pos-demo/internal/theme"
	"github.com/dealyze/pos-demo/internal/views/activity"
	"github.com/dealyze/pos-demo/internal/views/help"
	"github.com/dealyze/pos-demo/internal/views/prompt"
	"github.com/dealyze/pos-demo/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
)

const scrollStep = 5

// Model is the root Bubble Tea model.
type Model struct {
	bridge  *Bridge
	prompts <-chan session.PromptRequest
	ctx     context.Context
	cancel  context.CancelFunc

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	// Sub-views.
	statusBar status.Model
	log       activity.Model
	prompt    prompt.Model
	help      *help.Model
}

// New creates the root model. Notifications arrive through bridge and
// prompts through prompts.
func New(bridge *Bridge, prompts <-chan session.PromptRequest, endpoint string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	h := help.New()
	return Model{
		bridge:    bridge,
		prompts:   prompts,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		statusBar: status.New(endpoint),
		log:       activity.New(),
		prompt:    prompt.New(),
		help:      &h,
	}
}

// Init starts listening for notifications and prompts.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.Next(), m.waitPrompt())
}

func (m Model) waitPrompt() tea.Cmd {
	return func() tea.Msg {
		select {
		case req, ok := <-m.prompts:
			if !ok {
				return nil
			}
			return PromptMsg{Request: req}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.prompt.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case LineMsg:
		m.log.AddAt(msg.At, activity.KindOf(msg.Text), msg.Text)
		return m, m.bridge.Next()

	case StateMsg:
		m.statusBar.Set(msg.State, msg.Queued)
		return m, m.bridge.Next()

	case PromptMsg:
		cmd := m.prompt.Open(msg.Request)
		return m, cmd
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Printable keys belong to the answer while a prompt is open.
	if m.prompt.Active() && msg.Type == tea.KeyRunes {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		m.bridge.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.overlay == OverlayHelp {
			m.overlay = OverlayNone
		} else {
			m.overlay = OverlayHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.overlay = OverlayNone
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.log.ScrollUp(scrollStep)
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.log.ScrollDown(scrollStep)
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if !m.prompt.Active() {
			return m, nil
		}
		question := m.prompt.Request().Question
		answer, _ := m.prompt.Submit()
		m.log.Add("op", question+answer)
		return m, m.waitPrompt()
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	bar := m.statusBar.View()
	panel := m.prompt.View()
	footer := theme.StyleDimmed.Render("  enter:answer  pgup/pgdn:scroll  ?:help  ctrl+c:quit")

	bodyHeight := m.height - lipgloss.Height(bar) - lipgloss.Height(panel) - lipgloss.Height(footer)
	var body string
	if m.overlay == OverlayHelp {
		body = m.help.View(m.width)
	} else {
		body = m.log.View(m.width, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left, bar, body, panel, footer)
}
