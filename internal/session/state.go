package session

import (
	"encoding/json"
	"maps"
	"time"
)

// Status is the lifecycle state of the monitoring session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusMonitoring
	StatusStopping
	StatusError
)

var statusNames = map[Status]string{
	StatusIdle:       "idle",
	StatusConnecting: "connecting",
	StatusMonitoring: "monitoring",
	StatusStopping:   "stopping",
	StatusError:      "error",
}

var statusFromName = map[string]Status{
	"idle":       StatusIdle,
	"connecting": StatusConnecting,
	"monitoring": StatusMonitoring,
	"stopping":   StatusStopping,
	"error":      StatusError,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Startable reports whether Start is accepted in this state.
func (s Status) Startable() bool {
	return s == StatusIdle || s == StatusError
}

// Active reports whether a session is being established or monitored.
func (s Status) Active() bool {
	return s == StatusConnecting || s == StatusMonitoring
}

// TrackerStatus is the connection state of one tracker endpoint.
type TrackerStatus string

const (
	// TrackerUnchanged is passed to ApplyTracker by events that carry no
	// status of their own, such as warnings. It is never stored.
	TrackerUnchanged  TrackerStatus = ""
	TrackerConnecting TrackerStatus = "connecting"
	TrackerConnected  TrackerStatus = "connected"
	TrackerClosed     TrackerStatus = "closed"
	TrackerError      TrackerStatus = "error"
	TrackerUnknown    TrackerStatus = "unknown"
)

// TrackerRecord is the aggregated status of one tracker, keyed by announce
// URL. Counts hold the last value reported; nil means never reported.
type TrackerRecord struct {
	Status      TrackerStatus `json:"status"`
	Peers       *int          `json:"peers,omitempty"`
	Seeders     *int          `json:"seeders,omitempty"`
	Leechers    *int          `json:"leechers,omitempty"`
	LastUpdated time.Time     `json:"lastUpdated"`
	Warning     string        `json:"warning,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// TrackerMap maps announce URL to record. Maps returned by ApplyTracker
// and SeedTracker are fresh copies and must be treated as read-only.
type TrackerMap map[string]TrackerRecord

// PeerStatus is the connection state of one peer.
type PeerStatus string

const (
	PeerConnecting PeerStatus = "connecting"
	PeerConnected  PeerStatus = "connected"
	PeerDestroyed  PeerStatus = "destroyed"
)

// PeerRecord is the aggregated status of one peer. Destroyed is terminal.
type PeerRecord struct {
	Status         PeerStatus `json:"status"`
	ConnectionType string     `json:"connectionType,omitempty"`
	Address        string     `json:"address,omitempty"`
	Error          string     `json:"error,omitempty"`
	LastUpdated    time.Time  `json:"lastUpdated"`
}

// PeerMap maps peer id to record, read-only like TrackerMap.
type PeerMap map[string]PeerRecord

// Snapshot is the render-ready view of the controller.
type Snapshot struct {
	Status    Status     `json:"status"`
	InfoHash  string     `json:"infoHash,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Trackers  TrackerMap `json:"trackers"`
	Peers     PeerMap    `json:"peers"`
}

// Clone returns a copy whose maps can be modified independently. Records
// are copied by value; their count pointers are never written through.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Trackers = maps.Clone(s.Trackers)
	if c.Trackers == nil {
		c.Trackers = TrackerMap{}
	}
	c.Peers = maps.Clone(s.Peers)
	if c.Peers == nil {
		c.Peers = PeerMap{}
	}
	return c
}

// ActivePeers counts peers in the connected state.
func (s Snapshot) ActivePeers() int {
	n := 0
	for _, p := range s.Peers {
		if p.Status == PeerConnected {
			n++
		}
	}
	return n
}
