package btclient

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"

	"github.com/anacrolix/torrent"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

var sessionSlots = map[swarm.EventName]string{
	swarm.EventReady:    "ready",
	swarm.EventMetadata: "metadata",
	swarm.EventClose:    "close",
}

var trackerSlots = map[swarm.EventName]string{
	swarm.EventSocketConnect: "state",
	swarm.EventSocketClose:   "state",
	swarm.EventSocketError:   "state",
	swarm.EventUpdate:        "state",
}

// Handle is one torrent being monitored. It implements swarm.Handle,
// swarm.Emitter and swarm.DiscoveryProvider. Its methods never call into
// the torrent client, so they are safe to use from event handlers.
type Handle struct {
	*replayBus

	t        *torrent.Torrent
	infoHash string
	rawHash  string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	sources []*trackerSource
	byURL   map[string]*trackerSource
}

func newHandle(ctx context.Context, t *torrent.Torrent, infoHash string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	raw, _ := hex.DecodeString(infoHash)
	return &Handle{
		replayBus: newReplayBus(sessionSlots),
		t:         t,
		infoHash:  infoHash,
		rawHash:   string(raw),
		ctx:       ctx,
		cancel:    cancel,
		byURL:     make(map[string]*trackerSource),
	}
}

func (h *Handle) InfoHash() string {
	return h.infoHash
}

func (h *Handle) DiscoverySources() []swarm.TrackerSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]swarm.TrackerSource, len(h.sources))
	for i, s := range h.sources {
		out[i] = s
	}
	return out
}

// addSources registers announce URLs not seen before and returns the new
// sources.
func (h *Handle) addSources(urls []string) []*trackerSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	var added []*trackerSource
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := h.byURL[u]; ok {
			continue
		}
		s := newTrackerSource(u)
		h.byURL[u] = s
		h.sources = append(h.sources, s)
		added = append(added, s)
	}
	return added
}

func (h *Handle) source(announceURL string) *trackerSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byURL[announceURL]
}

// matches reports whether ih, as reported by a websocket tracker, names
// this torrent. Trackers report either the hex form or the raw bytes.
func (h *Handle) matches(ih string) bool {
	return ih == "" || ih == h.rawHash || strings.EqualFold(ih, h.infoHash)
}

// trackerSource is one announce URL of a torrent.
type trackerSource struct {
	*replayBus
	url string
}

func newTrackerSource(announceURL string) *trackerSource {
	return &trackerSource{replayBus: newReplayBus(trackerSlots), url: announceURL}
}

func (s *trackerSource) AnnounceURL() string {
	return s.url
}

// probed reports whether the source is announced to directly. Websocket
// trackers are run by the torrent client and report through its status
// callbacks instead.
func (s *trackerSource) probed() bool {
	u, err := url.Parse(s.url)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "udp", "udp4", "udp6":
		return true
	}
	return false
}

// announceList flattens the tiers of t's announce list, keeping order.
func announceList(tiers [][]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tier := range tiers {
		for _, u := range tier {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// connType names the transport of a peer connection the way the session
// reports it.
func connType(network string) string {
	switch {
	case strings.HasPrefix(network, "tcp"):
		return "tcp"
	case strings.HasPrefix(network, "udp"):
		return "utp"
	case network == "":
		return "unknown"
	}
	return network
}
