// Package theme provides the Lip Gloss palette and shared styles for the
// swarmwatch TUI. It imports nothing else from the TUI to avoid cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Status colors.
var (
	ColorConnected  = lipgloss.Color("#2ecc71")
	ColorConnecting = lipgloss.Color("#3498db")
	ColorError      = lipgloss.Color("#e74c3c")
	ColorWarning    = lipgloss.Color("#f39c12")
	ColorClosed     = lipgloss.Color("#95a5a6")
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#7f8c8d")
	ColorDimmed = lipgloss.Color("#95a5a6")
	ColorMedium = lipgloss.Color("#bdc3c7")
	ColorBright = lipgloss.Color("#ecf0f1")
)

// PulseRamp runs from full brightness to the dimmed end of the
// "connecting" dot animation.
var PulseRamp = []lipgloss.Color{
	"#3498db", "#3a8fcc", "#3f86bd", "#447dae", "#4a749f", "#4f6b90",
}

// StatusColor returns the color for a session, tracker or peer status
// name. Unknown names render dimmed.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "connected", "monitoring":
		return ColorConnected
	case "connecting", "stopping":
		return ColorConnecting
	case "error":
		return ColorError
	case "closed", "destroyed", "idle":
		return ColorClosed
	default:
		return ColorDimmed
	}
}

// Dot renders a status dot in the color for status.
func Dot(status string) string {
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render("●")
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

	StyleDetail = lipgloss.NewStyle().
			Foreground(ColorMedium)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)
)

// StatusText renders status in its color, substituting "unknown" for an
// empty name.
func StatusText(status string) string {
	if status == "" {
		status = "unknown"
	}
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(status)
}
