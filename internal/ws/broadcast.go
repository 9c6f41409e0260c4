package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"go.uber.org/zap"
)

var ErrTooManyClients = errors.New("too many websocket clients")

// Source is the state published to clients. *session.Controller
// satisfies it.
type Source interface {
	Snapshot() session.Snapshot
	Watch() (<-chan struct{}, func())
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster pushes snapshots of a Source to websocket clients: one on
// connect, one per throttle window after changes, and one every snapshot
// interval.
type Broadcaster struct {
	src              Source
	throttle         time.Duration
	snapshotInterval time.Duration
	maxClients       int
	log              *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]bool

	flushMu    sync.Mutex
	flushTimer *time.Timer
}

func NewBroadcaster(src Source, throttle, snapshotInterval time.Duration, maxClients int) *Broadcaster {
	return &Broadcaster{
		src:              src,
		throttle:         throttle,
		snapshotInterval: snapshotInterval,
		maxClients:       maxClients,
		log:              logging.Named("ws"),
		clients:          make(map[*client]bool),
	}
}

// Run follows the source until ctx is cancelled, then disconnects every
// client.
func (b *Broadcaster) Run(ctx context.Context) error {
	changes, cancel := b.src.Watch()
	defer cancel()

	var tick <-chan time.Time
	if b.snapshotInterval > 0 {
		ticker := time.NewTicker(b.snapshotInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			b.stop()
			return nil
		case _, ok := <-changes:
			if !ok {
				// Source closed; keep serving periodic snapshots.
				changes = nil
				continue
			}
			b.queueUpdate()
		case <-tick:
			b.broadcast(MsgSnapshot)
		}
	}
}

func (b *Broadcaster) queueUpdate() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	b.flushTimer = nil
	b.flushMu.Unlock()
	b.broadcast(MsgUpdate)
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{conn: conn, b: b, send: make(chan []byte, 64)}
	if data, err := b.encode(MsgSnapshot); err == nil {
		c.send <- data
	}

	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		return nil, ErrTooManyClients
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) encode(t MessageType) ([]byte, error) {
	data, err := json.Marshal(WSMessage{Type: t, Payload: b.src.Snapshot()})
	if err != nil {
		b.log.Errorf("marshal %s: %v", t, err)
	}
	return data, err
}

func (b *Broadcaster) broadcast(t MessageType) {
	if b.ClientCount() == 0 {
		return
	}
	data, err := b.encode(t)
	if err != nil {
		return
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.log.Warnf("ws client %s too slow, disconnecting", c.conn.RemoteAddr())
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) stop() {
	b.flushMu.Lock()
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.flushMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}
