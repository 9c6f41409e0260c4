// Package events keeps a scrollable log of what changed between
// snapshots, shown as an overlay.
package events

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindConn    = "conn"
	KindStatus  = "stat"
	KindTracker = "trk"
	KindPeer    = "peer"
	KindError   = "err"
)

type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds the log. Offset counts lines scrolled up from the newest.
type Model struct {
	Entries []Entry
	Offset  int
}

func New() Model {
	return Model{}
}

// Add appends an entry, drops the oldest past the cap and scrolls back to
// the bottom.
func (m *Model) Add(now time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: now, Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Diff logs the differences from prev to next: status and error changes,
// trackers appearing or changing state, and peers connecting or being
// destroyed.
func (m *Model) Diff(now time.Time, prev, next session.Snapshot) {
	if prev.Status != next.Status {
		m.Add(now, KindStatus, fmt.Sprintf("%s -> %s", prev.Status, next.Status))
	}
	if next.InfoHash != "" && next.InfoHash != prev.InfoHash {
		m.Add(now, KindStatus, "info hash "+next.InfoHash)
	}
	if next.LastError != "" && next.LastError != prev.LastError {
		m.Add(now, KindError, next.LastError)
	}

	for _, url := range sortedKeys(next.Trackers) {
		rec := next.Trackers[url]
		old, ok := prev.Trackers[url]
		switch {
		case !ok:
			m.Add(now, KindTracker, fmt.Sprintf("%s discovered (%s)", url, rec.Status))
		case old.Status != rec.Status:
			msg := fmt.Sprintf("%s %s -> %s", url, old.Status, rec.Status)
			if rec.Status == session.TrackerError && rec.Error != "" {
				msg += ": " + rec.Error
			}
			m.Add(now, KindTracker, msg)
		}
	}

	for _, id := range sortedKeys(next.Peers) {
		rec := next.Peers[id]
		if old, ok := prev.Peers[id]; ok && old.Status == rec.Status {
			continue
		}
		switch rec.Status {
		case session.PeerConnected:
			m.Add(now, KindPeer, fmt.Sprintf("%s connected via %s", id, rec.ConnectionType))
		case session.PeerDestroyed:
			m.Add(now, KindPeer, fmt.Sprintf("%s destroyed: %s", id, rec.Error))
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ScrollUp moves toward older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves toward the newest entry.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind)
		msg := e.Message
		if innerW > 26 && len(msg) > innerW-23 {
			msg = msg[:innerW-26] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scroll, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindConn:
		return theme.ColorConnecting
	case KindError:
		return theme.ColorError
	case KindTracker:
		return theme.ColorWarning
	case KindStatus, KindPeer:
		return theme.ColorConnected
	default:
		return theme.ColorDimmed
	}
}
