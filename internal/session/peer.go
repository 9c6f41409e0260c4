package session

import (
	"maps"
	"time"
)

// PeerUpdate is the partial data carried by one peer event. Empty fields
// leave the stored value alone.
type PeerUpdate struct {
	ConnectionType string
	Address        string
	Error          string
}

// ApplyPeer folds one peer event into prior and returns the new map. A
// destroyed peer stays destroyed: any non-destroyed event for it returns
// prior unchanged.
func ApplyPeer(prior PeerMap, id string, status PeerStatus, u PeerUpdate, now time.Time) PeerMap {
	rec, ok := prior[id]
	if ok && rec.Status == PeerDestroyed && status != PeerDestroyed {
		return prior
	}

	rec.Status = status
	if u.ConnectionType != "" {
		rec.ConnectionType = u.ConnectionType
	}
	if u.Address != "" {
		rec.Address = u.Address
	}
	if u.Error != "" {
		rec.Error = u.Error
	}
	rec.LastUpdated = now

	next := make(PeerMap, len(prior)+1)
	maps.Copy(next, prior)
	next[id] = rec
	return next
}
