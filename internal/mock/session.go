package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

type handle struct {
	swarm.Bus
	infoHash string
	sources  []swarm.TrackerSource
}

func (h *handle) InfoHash() string { return h.infoHash }

func (h *handle) DiscoverySources() []swarm.TrackerSource { return h.sources }

type tracker struct {
	swarm.Bus
	url     string
	pattern string
	seeders int
	leech   int
}

func (t *tracker) AnnounceURL() string { return t.url }

type mockPeer struct {
	id        string
	connType  string
	addr      string
	connected bool
	dieAt     int
}

type mockSession struct {
	handle   *handle
	trackers []*tracker
	rng      *rand.Rand
	maxPeers int
	peers    map[string]*mockPeer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Tracker personas. Each pattern drives a different part of the tracker
// status model.
var mockTrackers = []struct {
	url     string
	pattern string
}{
	{"udp://tracker.opentrackr.org:1337/announce", "steady"},
	{"wss://tracker.webtorrent.dev", "steady"},
	{"udp://open.demonii.com:1337/announce", "scrape"},
	{"wss://tracker.openwebtorrent.com", "flaky"},
	{"http://tracker.bt4g.com:2095/announce", "dead"},
}

var connTypes = []string{"tcp", "tcp", "utp", "webrtc"}

var destroyReasons = []string{"", "", "handshake timeout", "connection reset by peer", "peer choked us out"}

func newMockSession(infoHash string, rng *rand.Rand, maxPeers int) *mockSession {
	ms := &mockSession{
		handle:   &handle{infoHash: infoHash},
		rng:      rng,
		maxPeers: maxPeers,
		peers:    make(map[string]*mockPeer),
	}
	for _, def := range mockTrackers {
		t := &tracker{
			url:     def.url,
			pattern: def.pattern,
			seeders: 20 + rng.Intn(200),
			leech:   5 + rng.Intn(80),
		}
		ms.trackers = append(ms.trackers, t)
		ms.handle.sources = append(ms.handle.sources, t)
	}
	return ms
}

func (ms *mockSession) advance(tick int) {
	switch tick {
	case 1:
		ms.handle.Emit(swarm.Event{Name: swarm.EventDiscoveryStarted})
		return
	case 2:
		ms.handle.Emit(swarm.Event{Name: swarm.EventMetadata})
		ms.handle.Emit(swarm.Event{Name: swarm.EventReady})
		return
	}

	for _, t := range ms.trackers {
		ms.advanceTracker(t, tick)
	}
	ms.advancePeers(tick)
}

func (ms *mockSession) advanceTracker(t *tracker, tick int) {
	switch t.pattern {
	case "steady":
		if tick == 3 {
			t.Emit(swarm.Event{Name: swarm.EventSocketConnect})
		}
		if tick%4 == 3 {
			ms.drift(t)
			t.Emit(swarm.Event{Name: swarm.EventUpdate, Stats: ms.stats(t)})
			ms.handle.Emit(swarm.Event{Name: swarm.EventTrackerAnnounce})
		}
	case "scrape":
		if tick%6 == 4 {
			ms.drift(t)
			t.Emit(swarm.Event{Name: swarm.EventScrape, Stats: ms.stats(t)})
		}
	case "flaky":
		// Connect, report, warn, drop, fail, then start over.
		switch tick % 24 {
		case 3:
			t.Emit(swarm.Event{Name: swarm.EventSocketConnect})
		case 6:
			t.Emit(swarm.Event{Name: swarm.EventUpdate, Stats: &swarm.TrackerStats{Incomplete: swarm.Int(t.leech)}})
		case 10:
			t.Emit(swarm.Event{Name: swarm.EventWarning, Message: "announce interval too short"})
		case 15:
			t.Emit(swarm.Event{Name: swarm.EventSocketClose})
		case 19:
			err := fmt.Errorf("websocket: close 1006 (abnormal closure)")
			t.Emit(swarm.Event{Name: swarm.EventSocketError, Err: err, Message: err.Error()})
		}
	case "dead":
		if tick%10 == 3 {
			err := fmt.Errorf("dial tcp: connection refused")
			t.Emit(swarm.Event{Name: swarm.EventSocketError, Err: err, Message: err.Error()})
		}
	}
}

func (ms *mockSession) drift(t *tracker) {
	t.seeders = max(0, t.seeders+ms.rng.Intn(11)-5)
	t.leech = max(0, t.leech+ms.rng.Intn(7)-3)
}

func (ms *mockSession) stats(t *tracker) *swarm.TrackerStats {
	return &swarm.TrackerStats{Complete: swarm.Int(t.seeders), Incomplete: swarm.Int(t.leech)}
}

func (ms *mockSession) advancePeers(tick int) {
	for id, p := range ms.peers {
		switch {
		case tick >= p.dieAt:
			reason := destroyReasons[ms.rng.Intn(len(destroyReasons))]
			ms.handle.Emit(swarm.Event{Name: swarm.EventPeerDestroy, PeerID: id, Reason: reason})
			delete(ms.peers, id)
		case !p.connected:
			p.connected = true
			ms.handle.Emit(swarm.Event{
				Name:     swarm.EventPeerConnect,
				PeerID:   id,
				ConnType: p.connType,
				Addr:     p.addr,
			})
		}
	}

	if len(ms.peers) < ms.maxPeers && ms.rng.Intn(3) > 0 {
		p := &mockPeer{
			id:       fmt.Sprintf("-qB4650-%012x", ms.rng.Int63n(1<<48)),
			connType: connTypes[ms.rng.Intn(len(connTypes))],
			addr:     fmt.Sprintf("10.%d.%d.%d:%d", ms.rng.Intn(256), ms.rng.Intn(256), 1+ms.rng.Intn(254), 6881+ms.rng.Intn(100)),
			dieAt:    tick + 4 + ms.rng.Intn(40),
		}
		ms.peers[p.id] = p
		ms.handle.Emit(swarm.Event{Name: swarm.EventPeerCreate, PeerID: p.id})
	}
}
