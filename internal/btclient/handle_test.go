package btclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"go.uber.org/zap"
)

func TestReplayBusDeliversLatestSlotToLateSubscribers(t *testing.T) {
	b := newReplayBus(trackerSlots)
	b.Emit(swarm.Event{Name: swarm.EventSocketConnect})
	b.Emit(swarm.Event{Name: swarm.EventSocketError, Message: "refused"})

	got := make(chan swarm.Event, 2)
	b.Subscribe(swarm.EventSocketConnect, func(ev swarm.Event) { got <- ev })
	b.Subscribe(swarm.EventSocketError, func(ev swarm.Event) { got <- ev })

	select {
	case ev := <-got:
		assert.Equal(t, swarm.EventSocketError, ev.Name)
		assert.Equal(t, "refused", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("latest event was not replayed")
	}
	select {
	case ev := <-got:
		t.Fatalf("unexpected replay of %s", ev.Name)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReplayBusNeverReplaysOverNewerEvent(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := newReplayBus(trackerSlots)
		b.Emit(swarm.Event{Name: swarm.EventSocketError, Message: "refused"})

		var mu sync.Mutex
		var got []swarm.EventName
		record := func(ev swarm.Event) {
			mu.Lock()
			got = append(got, ev.Name)
			mu.Unlock()
		}

		// Hold dispatch so the replay and the fresh update race for it.
		b.deliver.Lock()
		b.Subscribe(swarm.EventSocketError, record)
		b.Subscribe(swarm.EventUpdate, record)
		done := make(chan struct{})
		go func() {
			b.Emit(swarm.Event{Name: swarm.EventUpdate})
			close(done)
		}()
		b.deliver.Unlock()
		<-done
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		require.NotEmpty(t, got)
		assert.Equal(t, swarm.EventUpdate, got[len(got)-1], "replay landed after a newer event: %v", got)
		mu.Unlock()
	}
}

func TestReplayBusIgnoresUnslottedEvents(t *testing.T) {
	b := newReplayBus(sessionSlots)
	b.Emit(swarm.Event{Name: swarm.EventPeerConnect, PeerID: "p1"})

	var mu sync.Mutex
	calls := 0
	b.Subscribe(swarm.EventPeerConnect, func(swarm.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestHandleSources(t *testing.T) {
	h := newHandle(context.Background(), nil, sintelHash)

	added := h.addSources([]string{"udp://a:1/announce", "", "wss://b", "udp://a:1/announce"})
	require.Len(t, added, 2)
	assert.Nil(t, h.addSources([]string{"wss://b"}))
	assert.Len(t, h.addSources([]string{"http://c/announce"}), 1)

	var urls []string
	for _, s := range h.DiscoverySources() {
		urls = append(urls, s.AnnounceURL())
	}
	assert.Equal(t, []string{"udp://a:1/announce", "wss://b", "http://c/announce"}, urls)
	assert.NotNil(t, h.source("wss://b"))
	assert.Nil(t, h.source("wss://unknown"))
}

func TestHandleMatches(t *testing.T) {
	h := newHandle(context.Background(), nil, sintelHash)
	raw := metainfo.NewHashFromHex(sintelHash)

	assert.True(t, h.matches(""))
	assert.True(t, h.matches(sintelHash))
	assert.True(t, h.matches("C9E15763F722F23E98A29DECDFAE341B98D53056"))
	assert.True(t, h.matches(string(raw[:])))
	assert.False(t, h.matches("0000000000000000000000000000000000000000"))
}

func TestTrackerSourceProbed(t *testing.T) {
	tests := map[string]bool{
		"udp://tracker.opentrackr.org:1337/announce": true,
		"http://tracker.example.org/announce":        true,
		"https://tracker.example.org/announce":       true,
		"wss://tracker.webtorrent.dev":               false,
		"ws://localhost:8000":                        false,
		"::not a url":                                false,
	}
	for u, want := range tests {
		assert.Equal(t, want, newTrackerSource(u).probed(), u)
	}
}

func TestAnnounceList(t *testing.T) {
	got := announceList([][]string{
		{"udp://a", "udp://b"},
		{"udp://b", ""},
		{"wss://c"},
	})
	assert.Equal(t, []string{"udp://a", "udp://b", "wss://c"}, got)
	assert.Nil(t, announceList(nil))
}

func TestConnType(t *testing.T) {
	for in, want := range map[string]string{
		"tcp4":   "tcp",
		"tcp":    "tcp",
		"udp6":   "utp",
		"webrtc": "webrtc",
		"":       "unknown",
	} {
		assert.Equal(t, want, connType(in), in)
	}
}

func newRoutingClient(handles ...*Handle) *Client {
	c := &Client{
		log:      zap.NewNop().Sugar(),
		sessions: make(map[string]*Handle),
		conns:    make(map[*torrent.PeerConn]peerRef),
	}
	for _, h := range handles {
		c.sessions[h.infoHash] = h
	}
	return c
}

func TestClientRoutesPeerEvents(t *testing.T) {
	h := newHandle(context.Background(), nil, sintelHash)
	other := newHandle(context.Background(), nil, "0000000000000000000000000000000000000001")
	c := newRoutingClient(h, other)

	var got []swarm.Event
	for _, name := range []swarm.EventName{swarm.EventPeerCreate, swarm.EventPeerConnect, swarm.EventPeerDestroy} {
		h.Subscribe(name, func(ev swarm.Event) { got = append(got, ev) })
	}
	otherCalls := 0
	other.Subscribe(swarm.EventPeerConnect, func(swarm.Event) { otherCalls++ })

	pc := &torrent.PeerConn{}
	pc.PeerID[0] = 0xab
	pc.Network = "tcp4"

	c.onHandshake(pc, metainfo.NewHashFromHex(sintelHash))
	c.onPeerClosed(pc)
	c.onPeerClosed(pc)

	id := "ab00000000000000000000000000000000000000"
	require.Len(t, got, 3)
	assert.Equal(t, swarm.Event{Name: swarm.EventPeerCreate, PeerID: id}, got[0])
	assert.Equal(t, swarm.Event{Name: swarm.EventPeerConnect, PeerID: id, ConnType: "tcp"}, got[1])
	assert.Equal(t, swarm.Event{Name: swarm.EventPeerDestroy, PeerID: id, Reason: "closed"}, got[2])
	assert.Zero(t, otherCalls)
	assert.Empty(t, c.conns)
}

func TestClientRoutesWebsocketTrackerStatus(t *testing.T) {
	h := newHandle(context.Background(), nil, sintelHash)
	h.addSources([]string{"wss://tracker.webtorrent.dev", "udp://tracker.example.org:1337"})
	c := newRoutingClient(h)

	src := h.source("wss://tracker.webtorrent.dev")
	var got []swarm.EventName
	for _, name := range []swarm.EventName{
		swarm.EventSocketConnect, swarm.EventSocketClose, swarm.EventSocketError,
		swarm.EventUpdate, swarm.EventWarning,
	} {
		src.Subscribe(name, func(ev swarm.Event) { got = append(got, ev.Name) })
	}
	announces := 0
	h.Subscribe(swarm.EventTrackerAnnounce, func(swarm.Event) { announces++ })

	url := "wss://tracker.webtorrent.dev"
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerConnected, Url: url})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerAnnounceSuccessful, Url: url, InfoHash: sintelHash})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerAnnounceSuccessful, Url: url, InfoHash: "someone else"})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerAnnounceError, Url: url, Error: errors.New("rate limited")})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerDisconnected, Url: url, Error: errors.New("eof")})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerDisconnected, Url: url})
	c.onStatus(torrent.StatusUpdatedEvent{Event: torrent.TrackerConnected, Url: "wss://not-ours"})

	assert.Equal(t, []swarm.EventName{
		swarm.EventSocketConnect,
		swarm.EventUpdate,
		swarm.EventWarning,
		swarm.EventSocketError,
		swarm.EventSocketClose,
	}, got)
	assert.Equal(t, 1, announces)
}

func TestAnnounceStats(t *testing.T) {
	st := announceStats(tracker.AnnounceResponse{Seeders: 12, Leechers: 3})
	assert.Equal(t, 12, *st.Complete)
	assert.Equal(t, 3, *st.Incomplete)
}
