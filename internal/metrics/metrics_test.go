package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

type staticSnapshot session.Snapshot

func (s staticSnapshot) Snapshot() session.Snapshot { return session.Snapshot(s) }

func TestCollectorCountsActivity(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.StatusChanged(session.StatusIdle, session.StatusConnecting)
	c.StatusChanged(session.StatusConnecting, session.StatusError)
	c.StatusChanged(session.StatusError, session.StatusConnecting)
	c.EventObserved(session.CategorySession, swarm.EventReady)
	c.EventObserved(session.CategoryTrackers, swarm.EventUpdate)
	c.EventObserved(session.CategoryTrackers, swarm.EventUpdate)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("connecting", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("trackers", "update")))
}

func TestSnapshotGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	require.NoError(t, c.Attach(staticSnapshot{
		Status: session.StatusMonitoring,
		Trackers: session.TrackerMap{
			"udp://a": {Status: session.TrackerConnected, Seeders: swarm.Int(12), Leechers: swarm.Int(4)},
			"wss://b": {Status: session.TrackerError},
		},
		Peers: session.PeerMap{
			"p1": {Status: session.PeerConnected},
			"p2": {Status: session.PeerConnected},
			"p3": {Status: session.PeerDestroyed},
		},
	}))

	want := `
# HELP swarmwatch_peers Peers by status
# TYPE swarmwatch_peers gauge
swarmwatch_peers{status="connected"} 2
swarmwatch_peers{status="connecting"} 0
swarmwatch_peers{status="destroyed"} 1
# HELP swarmwatch_session_status 1 for the current session status, 0 otherwise
# TYPE swarmwatch_session_status gauge
swarmwatch_session_status{status="connecting"} 0
swarmwatch_session_status{status="error"} 0
swarmwatch_session_status{status="idle"} 0
swarmwatch_session_status{status="monitoring"} 1
swarmwatch_session_status{status="stopping"} 0
# HELP swarmwatch_tracker_seeders Seeders last reported by a tracker
# TYPE swarmwatch_tracker_seeders gauge
swarmwatch_tracker_seeders{tracker="udp://a"} 12
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"swarmwatch_peers", "swarmwatch_session_status", "swarmwatch_tracker_seeders")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "swarmwatch_trackers")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
