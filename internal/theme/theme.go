// Package theme provides the Lip Gloss color palette and reusable styles
// for the POS demo TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
	ColorAwaiting     = lipgloss.Color("#a855f7")
)

// Activity log kind colors.
var (
	ColorInfo     = lipgloss.Color("#3b82f6")
	ColorCustomer = lipgloss.Color("#06b6d4")
	ColorOrder    = lipgloss.Color("#f59e0b")
	ColorOperator = lipgloss.Color("#7c3aed")
	ColorError    = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	case "awaiting operator":
		return ColorAwaiting
	case "disconnected":
		return ColorDisconnected
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph for a connection state name.
func StateGlyph(state string) string {
	switch state {
	case "connected":
		return "●"
	case "connecting":
		return "◌"
	case "awaiting operator":
		return "◎"
	default:
		return "○"
	}
}

// KindColor returns the color for an activity log kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "info":
		return ColorInfo
	case "cust":
		return ColorCustomer
	case "ord":
		return ColorOrder
	case "op":
		return ColorOperator
	case "err":
		return ColorError
	default:
		return ColorDimmed
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleQuestion = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAwaiting)
)
