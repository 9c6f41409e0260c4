package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/ws"
)

func TestDeriveHTTPBase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ws://127.0.0.1:8080/ws", "http://127.0.0.1:8080"},
		{"wss://monitor.example/ws", "https://monitor.example"},
		{"::not a url", "http://127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveHTTPBase(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	data, err := json.Marshal(ws.WSMessage{
		Type:    ws.MsgUpdate,
		Payload: session.Snapshot{Status: session.StatusMonitoring, InfoHash: "abc"},
	})
	require.NoError(t, err)

	msg, ok := decode(data)
	require.True(t, ok)
	snap := msg.(SnapshotMsg)
	assert.True(t, snap.Live)
	assert.Equal(t, session.StatusMonitoring, snap.Snapshot.Status)
	assert.NotNil(t, snap.Snapshot.Trackers, "maps are never nil after decode")

	_, ok = decode([]byte(`{"type":"other"}`))
	assert.False(t, ok)
	_, ok = decode([]byte(`not json`))
	assert.False(t, ok)
}

func TestHTTPClient(t *testing.T) {
	var gotToken, gotIdentifier string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(TokenHeader)
		var req ws.StartRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotIdentifier = req.Identifier
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(session.Snapshot{Status: session.StatusConnecting})
	})
	mux.HandleFunc("POST /api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ws.HealthPayload{Status: session.StatusIdle, Clients: 3})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "s3cret")
	ctx := context.Background()

	snap, err := c.Start(ctx, "magnet:?xt=urn:btih:abc")
	require.NoError(t, err)
	assert.Equal(t, session.StatusConnecting, snap.Status)
	assert.Equal(t, "s3cret", gotToken)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", gotIdentifier)

	_, err = c.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	msg := c.StopCmd(ctx)()
	assert.Equal(t, "stop", msg.(RequestErrorMsg).Op)

	h := c.HealthCmd(ctx)().(HealthMsg)
	assert.Equal(t, 3, h.Health.Clients)
}

func TestWSClientReadsSnapshots(t *testing.T) {
	tokens := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.Header.Get(TokenHeader)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(ws.WSMessage{Type: ws.MsgSnapshot, Payload: session.Snapshot{Status: session.StatusMonitoring}})
		// Wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.IsType(t, WSConnectedMsg{}, c.Listen(ctx)())
	assert.Equal(t, "tok", <-tokens)

	msg := c.ReadLoop(ctx)()
	snap, ok := msg.(SnapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, session.StatusMonitoring, snap.Snapshot.Status)

	c.Close()
	assert.IsType(t, WSDisconnectedMsg{}, c.ReadLoop(ctx)())
}

func TestListenGivesUpWhenCancelled(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, c.Listen(ctx)())
}
