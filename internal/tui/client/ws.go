// Package client talks to a running swarmwatch server: a websocket feed
// of session snapshots and REST calls for start, stop and resync.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/ws"
	"go.uber.org/zap"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// TokenHeader carries the shared token on every request.
const TokenHeader = "X-Swarmwatch-Token"

var errNotConnected = errors.New("not connected")

// WSClient manages the websocket connection to the swarmwatch server.
type WSClient struct {
	url   string
	token string
	log   *zap.SugaredLogger

	mu      sync.Mutex
	writeMu sync.Mutex // serialises pings
	conn    *websocket.Conn
	pingCtx context.CancelFunc
}

func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token, log: logging.Named("tui.ws")}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the websocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// SnapshotMsg delivers session state. Live is set for messages read off
// the websocket, which must be followed by another ReadLoop.
type SnapshotMsg struct {
	Snapshot session.Snapshot
	Live     bool
}

// Listen returns a command that dials until it connects or ctx ends,
// backing off between attempts.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		header := http.Header{}
		if c.token != "" {
			header.Set(TokenHeader, c.token)
		}
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
			if err == nil {
				c.mu.Lock()
				if c.pingCtx != nil {
					c.pingCtx()
				}
				pingCtx, pingCancel := context.WithCancel(ctx)
				c.conn = conn
				c.pingCtx = pingCancel
				c.mu.Unlock()

				go c.pingLoop(pingCtx, conn)
				return WSConnectedMsg{}
			}

			c.log.Debugf("ws dial error: %v (retry in %v)", err, delay)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// ReadLoop returns a command that blocks until the next snapshot arrives.
// Issue it again after each SnapshotMsg.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: errNotConnected}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				if ctx.Err() != nil {
					return nil
				}
				return WSDisconnectedMsg{Err: err}
			}
			if msg, ok := decode(data); ok {
				return msg
			}
		}
	}
}

func decode(data []byte) (tea.Msg, bool) {
	var msg ws.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false
	}
	switch msg.Type {
	case ws.MsgSnapshot, ws.MsgUpdate:
		return SnapshotMsg{Snapshot: msg.Payload.Clone(), Live: true}, true
	}
	return nil, false
}

func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop pings conn until ctx ends or conn is replaced.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close drops the current connection. A pending ReadLoop returns
// WSDisconnectedMsg, or nil once its context is cancelled.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
