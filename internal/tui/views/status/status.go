// Package status renders the connection bar and the overall session
// summary.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
	"github.com/swarmwatch/swarmwatch/internal/ws"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Snapshot  session.Snapshot
	Health    *ws.HealthPayload
	Pulse     Pulse
	Width     int
}

func New() Model {
	return Model{Pulse: NewPulse()}
}

// Animating reports whether the pulse should keep receiving frames.
func (m Model) Animating() bool {
	return m.Snapshot.Status == session.StatusConnecting
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorConnected).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorError).Render("○ Connecting...")
	}

	parts := []string{connStr, m.statusPart()}
	snap := m.Snapshot
	if snap.Status != session.StatusIdle {
		parts = append(parts, fmt.Sprintf("%s trackers  %s active peers",
			humanize.Comma(int64(len(snap.Trackers))),
			humanize.Comma(int64(snap.ActivePeers()))))
	}
	if h := m.Health; h != nil {
		parts = append(parts, theme.StyleDimmed.Render(fmt.Sprintf("rss %s  cpu %.1f%%  %d clients",
			humanize.Bytes(h.RSSBytes), h.CPUPercent, h.Clients)))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}

func (m Model) statusPart() string {
	st := m.Snapshot.Status.String()
	dot := theme.Dot(st)
	if m.Animating() {
		dot = m.Pulse.View()
	}
	return dot + " " + theme.StatusText(st)
}

// Summary renders the overall status block shown under the input.
func Summary(snap session.Snapshot) string {
	lines := []string{
		theme.StyleHeader.Render("Overall Status:") + " " + theme.StatusText(snap.Status.String()),
	}
	if snap.InfoHash != "" {
		lines = append(lines, theme.StyleHeader.Render("Monitoring Info Hash:")+" "+snap.InfoHash)
	}
	connecting := lipgloss.NewStyle().Foreground(theme.ColorConnecting)
	switch {
	case snap.Status == session.StatusMonitoring && snap.InfoHash == "":
		lines = append(lines, connecting.Render("Waiting for metadata..."))
	case snap.Status == session.StatusConnecting:
		lines = append(lines, connecting.Render("Connecting / Fetching Metadata..."))
	}
	return strings.Join(lines, "\n")
}

// ErrorPanel renders lastError, or nothing when it is empty.
func ErrorPanel(lastError string, width int) string {
	if lastError == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Width(max(width-2, 20)).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorError).
		Render(theme.StyleError.Bold(true).Render("Error") + "\n" + lastError)
}
