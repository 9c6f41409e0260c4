// Package trackers renders the tracker list.
package trackers

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/tui/theme"
)

const emptyText = "No trackers found or being monitored."

// View renders trackers sorted by URL. now anchors the "Updated" times.
func View(trackers session.TrackerMap, now time.Time) string {
	lines := []string{theme.StyleHeader.Render(fmt.Sprintf("Trackers (%d)", len(trackers)))}
	if len(trackers) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  "+emptyText))
		return strings.Join(lines, "\n")
	}

	urls := make([]string, 0, len(trackers))
	for u := range trackers {
		urls = append(urls, u)
	}
	slices.Sort(urls)

	for _, u := range urls {
		rec := trackers[u]
		lines = append(lines, "  "+theme.Dot(string(rec.Status))+" "+u)
		lines = append(lines, "    "+details(rec, now))
	}
	return strings.Join(lines, "\n")
}

func details(rec session.TrackerRecord, now time.Time) string {
	parts := []string{"Status: " + theme.StatusText(string(rec.Status))}
	if rec.Status == session.TrackerConnected || rec.Peers != nil {
		if rec.Peers != nil {
			parts = append(parts, "Peers: "+humanize.Comma(int64(*rec.Peers)))
		}
		if rec.Seeders != nil {
			parts = append(parts, "Seeds: "+humanize.Comma(int64(*rec.Seeders)))
		}
		if rec.Leechers != nil {
			parts = append(parts, "Leeches: "+humanize.Comma(int64(*rec.Leechers)))
		}
	}
	if !rec.LastUpdated.IsZero() {
		parts = append(parts, "Updated: "+humanize.RelTime(rec.LastUpdated, now, "ago", "from now"))
	}
	out := theme.StyleDetail.Render(strings.Join(parts, " | "))
	if rec.Warning != "" {
		out += theme.StyleWarning.Render(" | Warning: " + rec.Warning)
	}
	if rec.Error != "" && rec.Status == session.TrackerError {
		out += theme.StyleError.Render(" | Error: " + rec.Error)
	}
	return out
}
