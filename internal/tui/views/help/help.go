// Package help renders the key reference overlay as markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
)

const intro = `# swarmwatch

Monitors one torrent swarm at a time. Paste a magnet link, a 40 character
info hash or a path to a .torrent file and press enter. Trackers and peers
appear as the swarm client reports them.
`

// Markdown builds the help document for bindings.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n## Keys\n\n| key | action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

// View renders the overlay. Rendering errors fall back to the raw
// markdown.
func View(bindings []key.Binding, width int) string {
	innerW := max(width-6, 30)
	md := Markdown(bindings)
	out := md
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(innerW),
	)
	if err == nil {
		if rendered, err := r.Render(md); err == nil {
			out = rendered
		}
	}
	return lipgloss.NewStyle().
		Width(innerW+2).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(out, "\n") + "\n\n" + theme.StyleDimmed.Render("esc: close"))
}
