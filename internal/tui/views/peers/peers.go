// Package peers renders the peer list.
package peers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
)

const emptyText = "No peers connected or attempting connection."

// ShortID abbreviates ids longer than 12 characters to their first and
// last six.
func ShortID(id string) string {
	if id == "" {
		return "N/A"
	}
	if len(id) > 12 {
		return id[:6] + "..." + id[len(id)-6:]
	}
	return id
}

// View renders peers, live ones first and then by id. limit caps the
// number of rows; zero means no cap.
func View(snap session.Snapshot, limit int) string {
	lines := []string{theme.StyleHeader.Render(fmt.Sprintf("Peers (%d)", snap.ActivePeers()))}
	if len(snap.Peers) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  "+emptyText))
		return strings.Join(lines, "\n")
	}

	ids := make([]string, 0, len(snap.Peers))
	for id := range snap.Peers {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		ra, rb := rank(snap.Peers[a].Status), rank(snap.Peers[b].Status)
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})

	hidden := 0
	if limit > 0 && len(ids) > limit {
		hidden = len(ids) - limit
		ids = ids[:limit]
	}
	for _, id := range ids {
		rec := snap.Peers[id]
		lines = append(lines, "  "+theme.Dot(string(rec.Status))+" ID: "+ShortID(id))
		lines = append(lines, "    "+details(rec))
	}
	if hidden > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  ... %d more", hidden)))
	}
	return strings.Join(lines, "\n")
}

func rank(s session.PeerStatus) int {
	switch s {
	case session.PeerConnected:
		return 0
	case session.PeerConnecting:
		return 1
	default:
		return 2
	}
}

func details(rec session.PeerRecord) string {
	parts := []string{
		"Type: " + orNA(rec.ConnectionType),
		"Addr: " + orNA(rec.Address),
		"Status: " + theme.StatusText(string(rec.Status)),
	}
	out := theme.StyleDetail.Render(strings.Join(parts, " | "))
	if rec.Error != "" && rec.Status == session.PeerDestroyed {
		out += theme.StyleError.Render(" | " + rec.Error)
	}
	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
