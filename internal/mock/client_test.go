package mock

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swarmwatch/swarmwatch/internal/btclient"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

const hash = "c9e15763f722f23e98a29decdfae341b98d53056"

func TestMockSessionScript(t *testing.T) {
	ms := newMockSession(hash, rand.New(rand.NewSource(7)), 4)

	counts := map[swarm.EventName]int{}
	for _, name := range []swarm.EventName{
		swarm.EventDiscoveryStarted, swarm.EventMetadata, swarm.EventReady,
		swarm.EventPeerCreate, swarm.EventPeerConnect, swarm.EventPeerDestroy,
	} {
		ms.handle.Subscribe(name, func(ev swarm.Event) { counts[ev.Name]++ })
	}
	trackerCounts := map[string]map[swarm.EventName]int{}
	for _, tr := range ms.trackers {
		c := map[swarm.EventName]int{}
		trackerCounts[tr.pattern] = c
		for _, name := range []swarm.EventName{
			swarm.EventSocketConnect, swarm.EventSocketClose, swarm.EventSocketError,
			swarm.EventUpdate, swarm.EventScrape, swarm.EventWarning,
		} {
			tr.Subscribe(name, func(ev swarm.Event) { c[ev.Name]++ })
		}
	}

	for tick := 1; tick <= 60; tick++ {
		ms.advance(tick)
		assert.LessOrEqual(t, len(ms.peers), 4)
	}

	assert.Equal(t, 1, counts[swarm.EventDiscoveryStarted])
	assert.Equal(t, 1, counts[swarm.EventReady])
	assert.Positive(t, counts[swarm.EventPeerCreate])
	assert.Positive(t, counts[swarm.EventPeerConnect])
	assert.Positive(t, counts[swarm.EventPeerDestroy])

	assert.Positive(t, trackerCounts["steady"][swarm.EventUpdate])
	assert.Positive(t, trackerCounts["scrape"][swarm.EventScrape])
	assert.Positive(t, trackerCounts["flaky"][swarm.EventWarning])
	assert.Positive(t, trackerCounts["flaky"][swarm.EventSocketClose])
	assert.Positive(t, trackerCounts["dead"][swarm.EventSocketError])
	assert.Zero(t, trackerCounts["dead"][swarm.EventUpdate])
}

func TestClientRejectsBadIdentifier(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.Add(context.Background(), "not a torrent", swarm.AddOptions{})
	assert.ErrorIs(t, err, btclient.ErrBadIdentifier)
}

func TestClientRemoveUnknown(t *testing.T) {
	c := NewClient(Options{})
	errc := make(chan error, 1)
	require.NoError(t, c.Remove(hash, func(err error) { errc <- err }))

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, swarm.ErrUnknownSession))
	case <-time.After(time.Second):
		t.Fatal("done was not called")
	}
}

func TestClientDrivesController(t *testing.T) {
	client := NewClient(Options{Tick: 2 * time.Millisecond, Seed: 3})
	t.Cleanup(func() { client.Close() })
	c := session.NewController(client, session.Options{})
	t.Cleanup(c.Close)

	c.Start(hash)
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Status == session.StatusMonitoring &&
			len(snap.Trackers) == len(mockTrackers) &&
			snap.ActivePeers() > 0
	}, 5*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Snapshot().Trackers["http://tracker.bt4g.com:2095/announce"].Status == session.TrackerError
	}, 5*time.Second, 5*time.Millisecond)

	c.Stop()
	require.Eventually(t, func() bool { return c.Status() == session.StatusIdle }, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Snapshot().Peers)
}
