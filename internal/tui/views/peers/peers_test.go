package peers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swarmwatch/swarmwatch/internal/session"
)

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", "N/A"},
		{"abc", "abc"},
		{"abcdefghijkl", "abcdefghijkl"},
		{"abcdefghijklm", "abcdef...hijklm"},
		{"2d5554333535302d616263646566", "2d5554...646566"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortID(tt.id))
		})
	}
}

func TestEmpty(t *testing.T) {
	got := View(session.Snapshot{}.Clone(), 0)
	assert.Contains(t, got, "Peers (0)")
	assert.Contains(t, got, "No peers connected or attempting connection.")
}

func TestViewOrderingAndCount(t *testing.T) {
	snap := session.Snapshot{Peers: session.PeerMap{
		"gone":  {Status: session.PeerDestroyed, Error: "handshake failed"},
		"dial":  {Status: session.PeerConnecting, ConnectionType: "unknown"},
		"live1": {Status: session.PeerConnected, ConnectionType: "tcp", Address: "10.0.0.2:51413"},
		"live0": {Status: session.PeerConnected, ConnectionType: "utp"},
	}}

	got := View(snap, 0)
	assert.Contains(t, got, "Peers (2)")
	order := []string{"ID: live0", "ID: live1", "ID: dial", "ID: gone"}
	for i := 1; i < len(order); i++ {
		assert.Less(t, strings.Index(got, order[i-1]), strings.Index(got, order[i]), "%s before %s", order[i-1], order[i])
	}
	assert.Contains(t, got, "Addr: 10.0.0.2:51413")
	assert.Contains(t, got, "Addr: N/A")
	assert.Contains(t, got, "handshake failed")
}

func TestViewLimit(t *testing.T) {
	snap := session.Snapshot{Peers: session.PeerMap{
		"a": {Status: session.PeerConnected},
		"b": {Status: session.PeerConnected},
		"c": {Status: session.PeerConnecting},
	}}
	got := View(snap, 2)
	assert.Contains(t, got, "... 1 more")
	assert.NotContains(t, got, "ID: c")
}

func TestErrorOnlyWhenDestroyed(t *testing.T) {
	assert.NotContains(t, details(session.PeerRecord{Status: session.PeerConnected, Error: "stale"}), "stale")
	assert.Contains(t, details(session.PeerRecord{Status: session.PeerDestroyed, Error: "closed"}), "closed")
}
