// Package btclient adapts an anacrolix torrent client to the swarm
// client contract used by the session controller.
package btclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/swarmwatch/swarmwatch/internal/config"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrClosed    = errors.New("torrent client closed")
	ErrDuplicate = errors.New("torrent already monitored")
)

const dropTimeout = 10 * time.Second

type peerRef struct {
	h  *Handle
	id string
}

// Client is a swarm.Client backed by a torrent client.
type Client struct {
	cfg config.ClientConfig
	cl  *torrent.Client
	log *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Handle
	conns    map[*torrent.PeerConn]peerRef
}

func New(cfg config.ClientConfig) (*Client, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		log:      logging.Named("btclient"),
		sessions: make(map[string]*Handle),
		conns:    make(map[*torrent.PeerConn]peerRef),
	}

	tcfg := torrent.NewDefaultClientConfig()
	tcfg.DataDir = cfg.DataDir
	tcfg.ListenPort = cfg.ListenPort
	tcfg.NoUpload = cfg.NoUpload
	tcfg.Seed = false
	tcfg.NoDHT = cfg.DisableDHT
	tcfg.DisableIPv6 = cfg.DisableIPv6
	tcfg.Callbacks.CompletedHandshake = c.onHandshake
	tcfg.Callbacks.PeerConnClosed = c.onPeerClosed
	tcfg.Callbacks.StatusUpdated = append(tcfg.Callbacks.StatusUpdated, c.onStatus)

	cl, err := torrent.NewClient(tcfg)
	if err != nil {
		return nil, fmt.Errorf("starting torrent client: %w", err)
	}
	c.cl = cl
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.log.Infof("torrent client listening on port %d", cl.LocalPort())
	return c, nil
}

// Add starts monitoring identifier. The returned handle replays ready and
// metadata to late subscribers.
func (c *Client) Add(ctx context.Context, identifier string, opts swarm.AddOptions) (swarm.Handle, error) {
	src, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	closed := c.closed
	_, dup := c.sessions[src.InfoHash]
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, src.InfoHash)
	}

	// The torrent client may run callbacks that take c.mu while adding.
	var t *torrent.Torrent
	if src.MetaInfo != nil {
		t, err = c.cl.AddTorrent(src.MetaInfo)
	} else {
		t, err = c.cl.AddMagnet(src.Magnet)
	}
	if err != nil {
		return nil, fmt.Errorf("adding torrent: %w", err)
	}
	if opts.NoDownload {
		t.DisallowDataDownload()
	}
	if opts.DisplayName != "" {
		t.SetDisplayName(opts.DisplayName)
	}

	h := newHandle(c.ctx, t, src.InfoHash)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		t.Drop()
		return nil, ErrClosed
	}
	if _, ok := c.sessions[h.infoHash]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, h.infoHash)
	}
	c.sessions[h.infoHash] = h
	c.mu.Unlock()
	c.log.Infof("added torrent %s", h.infoHash)

	added := h.addSources(announceList(t.Metainfo().UpvertedAnnounceList()))
	h.wg.Add(1)
	go c.watch(h, added)
	return h, nil
}

// watch follows the torrent's lifecycle until it closes or the handle is
// removed.
func (c *Client) watch(h *Handle, initial []*trackerSource) {
	defer h.wg.Done()

	c.startProbes(h, initial)
	h.Emit(swarm.Event{Name: swarm.EventDiscoveryStarted})

	var timeout <-chan time.Time
	if c.cfg.MetadataTimeout > 0 {
		timer := time.NewTimer(c.cfg.MetadataTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	gotInfo := h.t.GotInfo()
	for {
		select {
		case <-gotInfo:
			gotInfo = nil
			timeout = nil
			c.log.Infof("metadata received for %s (%s)", h.infoHash, h.t.Name())
			added := h.addSources(announceList(h.t.Metainfo().UpvertedAnnounceList()))
			c.startProbes(h, added)
			h.Emit(swarm.Event{Name: swarm.EventMetadata})
			h.Emit(swarm.Event{Name: swarm.EventReady})
		case <-timeout:
			timeout = nil
			h.Emit(swarm.Event{
				Name:    swarm.EventWarning,
				Message: fmt.Sprintf("no metadata after %s", c.cfg.MetadataTimeout),
			})
		case <-h.t.Closed():
			h.Emit(swarm.Event{Name: swarm.EventClose})
			return
		case <-h.ctx.Done():
			return
		}
	}
}

func (c *Client) startProbes(h *Handle, sources []*trackerSource) {
	for _, s := range sources {
		if !s.probed() {
			continue
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			c.probe(h, s)
		}()
	}
}

// Remove drops the torrent and reports once it has closed.
func (c *Client) Remove(key string, done func(error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	h, ok := c.sessions[key]
	if ok {
		delete(c.sessions, key)
		for pc, ref := range c.conns {
			if ref.h == h {
				delete(c.conns, pc)
			}
		}
	}
	c.mu.Unlock()

	if !ok {
		go done(fmt.Errorf("%w: %s", swarm.ErrUnknownSession, key))
		return nil
	}
	go func() {
		done(c.drop(h))
	}()
	return nil
}

func (c *Client) drop(h *Handle) error {
	h.cancel()
	h.t.Drop()

	timer := time.NewTimer(dropTimeout)
	defer timer.Stop()
	select {
	case <-h.t.Closed():
	case <-timer.C:
		return fmt.Errorf("torrent %s did not close within %s", h.infoHash, dropTimeout)
	}
	h.wg.Wait()
	c.log.Infof("dropped torrent %s", h.infoHash)
	return nil
}

// Close drops every torrent and shuts the torrent client down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handles := make([]*Handle, 0, len(c.sessions))
	for _, h := range c.sessions {
		handles = append(handles, h)
	}
	c.sessions = make(map[string]*Handle)
	c.conns = make(map[*torrent.PeerConn]peerRef)
	c.mu.Unlock()

	c.cancel()
	for _, h := range handles {
		h.cancel()
	}
	err := multierr.Combine(c.cl.Close()...)
	for _, h := range handles {
		h.wg.Wait()
	}
	return err
}

func (c *Client) lookup(key string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[key]
}

func (c *Client) onHandshake(pc *torrent.PeerConn, ih torrent.InfoHash) {
	h := c.lookup(ih.HexString())
	if h == nil {
		return
	}
	id := hex.EncodeToString(pc.PeerID[:])

	c.mu.Lock()
	c.conns[pc] = peerRef{h: h, id: id}
	c.mu.Unlock()

	var addr string
	if pc.RemoteAddr != nil {
		addr = pc.RemoteAddr.String()
	}
	h.Emit(swarm.Event{Name: swarm.EventPeerCreate, PeerID: id})
	h.Emit(swarm.Event{
		Name:     swarm.EventPeerConnect,
		PeerID:   id,
		ConnType: connType(pc.Network),
		Addr:     addr,
	})
}

func (c *Client) onPeerClosed(pc *torrent.PeerConn) {
	c.mu.Lock()
	ref, ok := c.conns[pc]
	delete(c.conns, pc)
	c.mu.Unlock()
	if !ok {
		return
	}
	ref.h.Emit(swarm.Event{Name: swarm.EventPeerDestroy, PeerID: ref.id, Reason: "closed"})
}

// onStatus relays websocket tracker status to the matching sources.
func (c *Client) onStatus(ev torrent.StatusUpdatedEvent) {
	var out swarm.Event
	switch ev.Event {
	case torrent.TrackerConnected:
		out = swarm.Event{Name: swarm.EventSocketConnect}
	case torrent.TrackerDisconnected:
		out = swarm.Event{Name: swarm.EventSocketClose}
	case torrent.TrackerAnnounceSuccessful:
		out = swarm.Event{Name: swarm.EventUpdate}
	case torrent.TrackerAnnounceError:
		out = swarm.Event{Name: swarm.EventWarning}
	default:
		return
	}
	if ev.Error != nil {
		if out.Name != swarm.EventWarning {
			out.Name = swarm.EventSocketError
		}
		out.Err = ev.Error
		out.Message = ev.Error.Error()
	}

	for _, t := range c.trackersFor(ev.Url, ev.InfoHash) {
		t.src.Emit(out)
		if out.Name == swarm.EventUpdate {
			t.h.Emit(swarm.Event{Name: swarm.EventTrackerAnnounce})
		}
	}
}

type boundSource struct {
	h   *Handle
	src *trackerSource
}

func (c *Client) trackersFor(announceURL, ih string) []boundSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []boundSource
	for _, h := range c.sessions {
		if !h.matches(ih) {
			continue
		}
		if s := h.source(announceURL); s != nil {
			out = append(out, boundSource{h: h, src: s})
		}
	}
	return out
}
