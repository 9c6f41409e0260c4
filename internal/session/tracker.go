package session

import (
	"maps"
	"time"
)

// TrackerUpdate is the partial data carried by one tracker event. Nil or
// empty fields leave the stored value alone.
type TrackerUpdate struct {
	Peers    *int
	Seeders  *int
	Leechers *int
	Warning  string
	Error    string
}

// ApplyTracker folds one tracker event into prior and returns the new map.
// prior is never modified. A record is created when url is not present.
//
// Counts follow last-known-value semantics. Warning and error persist
// until an event reports a status other than error; an event without a
// status (TrackerUnchanged) keeps the status and both messages, except for
// a message it carries itself.
func ApplyTracker(prior TrackerMap, url string, status TrackerStatus, u TrackerUpdate, now time.Time) TrackerMap {
	rec, ok := prior[url]
	if !ok {
		rec.Status = TrackerUnknown
	}

	if status != TrackerUnchanged {
		rec.Status = status
	}
	if u.Peers != nil {
		rec.Peers = u.Peers
	}
	if u.Seeders != nil {
		rec.Seeders = u.Seeders
	}
	if u.Leechers != nil {
		rec.Leechers = u.Leechers
	}

	switch {
	case u.Warning != "":
		rec.Warning = u.Warning
	case status != TrackerUnchanged && status != TrackerError:
		rec.Warning = ""
	}
	switch {
	case u.Error != "":
		rec.Error = u.Error
	case status != TrackerUnchanged && status != TrackerError:
		rec.Error = ""
	}

	rec.LastUpdated = now

	next := make(TrackerMap, len(prior)+1)
	maps.Copy(next, prior)
	next[url] = rec
	return next
}

// SeedTracker adds a connecting record for url unless one exists. It
// returns prior itself when nothing changes.
func SeedTracker(prior TrackerMap, url string, now time.Time) TrackerMap {
	if _, ok := prior[url]; ok {
		return prior
	}
	next := make(TrackerMap, len(prior)+1)
	maps.Copy(next, prior)
	next[url] = TrackerRecord{Status: TrackerConnecting, LastUpdated: now}
	return next
}
