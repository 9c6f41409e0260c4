package swarm

// EventName identifies an event emitted by a session handle or tracker source.
type EventName string

// Session handle events.
const (
	EventReady            EventName = "ready"
	EventMetadata         EventName = "metadata"
	EventPeerConnect      EventName = "peerConnect"
	EventPeerCreate       EventName = "peerCreate"
	EventPeerDestroy      EventName = "peerDestroy"
	EventTrackerAnnounce  EventName = "trackerAnnounce"
	EventError            EventName = "error"
	EventWarning          EventName = "warning"
	EventClose            EventName = "close"
	EventDiscoveryStarted EventName = "discoveryStarted"
)

// Tracker source events. EventWarning is shared with sessions.
const (
	EventSocketConnect EventName = "socketConnect"
	EventSocketClose   EventName = "socketClose"
	EventSocketError   EventName = "socketError"
	EventUpdate        EventName = "update"
	EventScrape        EventName = "scrape"
)

// TrackerStats carries the swarm counts reported by an announce or scrape.
// Nil means the tracker did not report the value.
type TrackerStats struct {
	Complete   *int `json:"complete,omitempty"`
	Incomplete *int `json:"incomplete,omitempty"`
}

// Event is the payload delivered to handlers. Only the fields relevant to
// Name are set.
type Event struct {
	Name EventName

	PeerID   string // peerConnect, peerCreate, peerDestroy
	ConnType string // peerConnect: transport, e.g. "tcp", "utp", "webrtc"
	Addr     string // peerConnect: remote address
	Reason   string // peerDestroy

	Err     error         // error, socketError
	Message string        // warning
	Stats   *TrackerStats // update, scrape
}

// Handler receives events for a subscription.
type Handler func(Event)

// SubscriptionID identifies one subscription on one Emitter.
type SubscriptionID uint64

// Emitter is the subscribe/unsubscribe capability required of session
// handles and tracker sources.
type Emitter interface {
	Subscribe(event EventName, h Handler) SubscriptionID
	Unsubscribe(event EventName, id SubscriptionID)
}

// Int returns a pointer to v, for building TrackerStats.
func Int(v int) *int {
	return &v
}
