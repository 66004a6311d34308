// Package help renders the key binding and workflow overlay from Markdown.
package help

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dealyze/pos-demo/internal/theme"
)

// Text is the overlay's Markdown source.
const Text = `# Dealyze POS demo

The demo stands in for a point of sale. Dealyze pushes **customer** and
**order** events; each one that needs a decision opens a prompt.

## Prompts

| Event | Question | Answers |
|-------|----------|---------|
| customer | bills paid | a number > 0, or ` + "`cancel`" + ` |
| order with a discount | approve redemption | ` + "`yes`" + `, ` + "`no`" + `, ` + "`cancel`" + ` |

Prompts are answered one at a time in arrival order.

## Keys

- ` + "`enter`" + ` submit the answer
- ` + "`pgup`" + ` / ` + "`pgdown`" + ` scroll the activity log
- ` + "`?`" + ` toggle this help (typed into the answer while a prompt is open)
- ` + "`esc`" + ` close this help
- ` + "`ctrl+c`" + ` quit
`

// Model caches the rendered overlay per width.
type Model struct {
	width    int
	rendered string
}

// New creates a help overlay.
func New() Model {
	return Model{}
}

// View renders the overlay at width.
func (m *Model) View(width int) string {
	innerW := width - 6
	if innerW < 30 {
		innerW = 30
	}
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = render(innerW)
	}
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.rendered)
}

func render(width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return Text
	}
	out, err := r.Render(Text)
	if err != nil {
		return Text
	}
	return out
}
