package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/ws"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		snap    session.Snapshot
		want    []string
		notWant []string
	}{
		{
			name:    "idle",
			snap:    session.Snapshot{Status: session.StatusIdle},
			want:    []string{"Overall Status: idle"},
			notWant: []string{"Monitoring Info Hash", "Waiting", "Connecting /"},
		},
		{
			name: "connecting",
			snap: session.Snapshot{Status: session.StatusConnecting},
			want: []string{"Overall Status: connecting", "Connecting / Fetching Metadata..."},
		},
		{
			name:    "monitoring without hash",
			snap:    session.Snapshot{Status: session.StatusMonitoring},
			want:    []string{"Waiting for metadata..."},
			notWant: []string{"Monitoring Info Hash"},
		},
		{
			name:    "monitoring with hash",
			snap:    session.Snapshot{Status: session.StatusMonitoring, InfoHash: "abc123abc123"},
			want:    []string{"Monitoring Info Hash: abc123abc123"},
			notWant: []string{"Waiting for metadata..."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summary(tt.snap)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestErrorPanel(t *testing.T) {
	assert.Empty(t, ErrorPanel("", 80))
	got := ErrorPanel("start failed", 80)
	assert.Contains(t, got, "Error")
	assert.Contains(t, got, "start failed")
}

func TestStatusBar(t *testing.T) {
	m := New()
	m.Width = 160
	m.Snapshot = session.Snapshot{
		Status: session.StatusMonitoring,
		Trackers: session.TrackerMap{
			"udp://a": {Status: session.TrackerConnected},
			"udp://b": {Status: session.TrackerError},
		},
		Peers: session.PeerMap{
			"p1": {Status: session.PeerConnected},
			"p2": {Status: session.PeerDestroyed},
		},
	}
	m.Health = &ws.HealthPayload{RSSBytes: 42_000_000, Clients: 2}

	v := m.View()
	assert.Contains(t, v, "Connecting...")
	assert.Contains(t, v, "monitoring")
	assert.Contains(t, v, "2 trackers  1 active peers")
	assert.Contains(t, v, "rss 42 MB")
	assert.Contains(t, v, "2 clients")
	assert.False(t, m.Animating())

	m.Connected = true
	assert.Contains(t, m.View(), "Connected")
}

func TestPulseOscillates(t *testing.T) {
	p := NewPulse()
	var sawHigh, sawLowAfterHigh bool
	for range 900 {
		p.Step()
		switch l := p.Level(); {
		case l > 0.9:
			sawHigh = true
		case sawHigh && l < 0.1:
			sawLowAfterHigh = true
		}
		assert.NotEmpty(t, p.View())
	}
	assert.True(t, sawHigh, "pulse should brighten")
	assert.True(t, sawLowAfterHigh, "pulse should fade back")
}
