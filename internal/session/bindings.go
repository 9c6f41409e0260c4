package session

import (
	"fmt"

	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

// on registers fn for event on src. The registered handler takes the
// controller lock and drops the event when the controller was closed or
// the session it was bound for is gone.
func (c *Controller) on(src any, gen uint64, cat Category, event swarm.EventName, fn func(swarm.Event)) bool {
	return c.registry.Register(src, event, func(ev swarm.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.gen {
			return
		}
		if c.opts.Observer != nil {
			c.opts.Observer.EventObserved(cat, event)
		}
		fn(ev)
	}, cat)
}

func (c *Controller) bindSessionLocked(gen uint64, em swarm.Emitter) {
	c.on(em, gen, CategorySession, swarm.EventReady, func(swarm.Event) {
		if c.status == StatusConnecting {
			c.log.Infof("session %s ready", c.infoHash)
			c.setStatusLocked(StatusMonitoring)
		}
	})

	c.on(em, gen, CategorySession, swarm.EventMetadata, func(swarm.Event) {
		if ih := c.handle.InfoHash(); ih != "" && ih != c.infoHash {
			c.infoHash = ih
			c.notifyLocked()
		}
		c.log.Infof("metadata received for %s", c.infoHash)
		c.attachTrackersLocked(gen)
	})

	c.on(em, gen, CategorySession, swarm.EventPeerCreate, func(ev swarm.Event) {
		if ev.PeerID == "" {
			return
		}
		u := PeerUpdate{Address: ev.Addr}
		if _, ok := c.peers[ev.PeerID]; !ok {
			u.ConnectionType = "unknown"
		}
		c.updatePeerLocked(ev.PeerID, PeerConnecting, u)
	})

	c.on(em, gen, CategorySession, swarm.EventPeerConnect, func(ev swarm.Event) {
		if ev.PeerID == "" {
			return
		}
		c.updatePeerLocked(ev.PeerID, PeerConnected, PeerUpdate{
			ConnectionType: ev.ConnType,
			Address:        ev.Addr,
		})
	})

	c.on(em, gen, CategorySession, swarm.EventPeerDestroy, func(ev swarm.Event) {
		if ev.PeerID == "" {
			return
		}
		reason := ev.Reason
		if reason == "" {
			reason = "closed"
		}
		c.updatePeerLocked(ev.PeerID, PeerDestroyed, PeerUpdate{Error: reason})
	})

	c.on(em, gen, CategorySession, swarm.EventTrackerAnnounce, func(swarm.Event) {
		c.log.Debugf("tracker announce for %s", c.infoHash)
	})

	c.on(em, gen, CategorySession, swarm.EventError, func(ev swarm.Event) {
		msg := eventMessage(ev, "unknown swarm error")
		c.log.Warnf("swarm error for %s: %s", c.infoHash, msg)
		cause := ev.Err
		if cause == nil {
			cause = fmt.Errorf("%s", msg)
		}
		c.setErrorLocked(fmt.Errorf("%w: %w", ErrProtocol, cause), msg)
	})

	c.on(em, gen, CategorySession, swarm.EventWarning, func(ev swarm.Event) {
		c.log.Warnf("swarm warning for %s: %s", c.infoHash, eventMessage(ev, "unspecified"))
	})

	c.on(em, gen, CategorySession, swarm.EventClose, func(swarm.Event) {
		c.log.Infof("session %s closed by client", c.infoHash)
		c.stopLocked()
	})

	c.on(em, gen, CategoryDiscovery, swarm.EventDiscoveryStarted, func(swarm.Event) {
		if n := c.attachTrackersLocked(gen); n == 0 {
			c.log.Debugf("discovery started for %s, no new trackers", c.infoHash)
		}
	})
}

// attachTrackersLocked binds listeners for every discovery endpoint not
// yet present in the tracker map and returns how many were added.
func (c *Controller) attachTrackersLocked(gen uint64) int {
	dp, ok := c.handle.(swarm.DiscoveryProvider)
	if !ok {
		c.log.Debugf("session %s exposes no discovery sources", c.infoHash)
		return 0
	}
	sources := dp.DiscoverySources()
	if len(sources) == 0 {
		c.log.Debugf("no trackers found for %s", c.infoHash)
		return 0
	}

	added := 0
	for _, src := range sources {
		if src == nil {
			continue
		}
		url := src.AnnounceURL()
		if url == "" {
			continue
		}
		if _, ok := c.trackers[url]; ok {
			continue
		}
		c.trackers = SeedTracker(c.trackers, url, c.now())
		c.bindTrackerLocked(gen, src, url)
		added++
	}
	if added > 0 {
		c.log.Infof("monitoring %d new trackers for %s", added, c.infoHash)
		c.notifyLocked()
	}
	return added
}

func (c *Controller) bindTrackerLocked(gen uint64, src swarm.TrackerSource, url string) {
	c.on(src, gen, CategoryTrackers, swarm.EventSocketConnect, func(swarm.Event) {
		c.updateTrackerLocked(url, TrackerConnected, TrackerUpdate{})
	})
	c.on(src, gen, CategoryTrackers, swarm.EventSocketClose, func(swarm.Event) {
		c.updateTrackerLocked(url, TrackerClosed, TrackerUpdate{})
	})
	c.on(src, gen, CategoryTrackers, swarm.EventSocketError, func(ev swarm.Event) {
		c.updateTrackerLocked(url, TrackerError, TrackerUpdate{
			Error: eventMessage(ev, "socket error"),
		})
	})
	counts := func(ev swarm.Event) {
		c.updateTrackerLocked(url, TrackerConnected, statsUpdate(ev.Stats))
	}
	c.on(src, gen, CategoryTrackers, swarm.EventUpdate, counts)
	c.on(src, gen, CategoryTrackers, swarm.EventScrape, counts)
	c.on(src, gen, CategoryTrackers, swarm.EventWarning, func(ev swarm.Event) {
		c.updateTrackerLocked(url, TrackerUnchanged, TrackerUpdate{
			Warning: eventMessage(ev, "tracker warning"),
		})
	})
}

func statsUpdate(st *swarm.TrackerStats) TrackerUpdate {
	if st == nil {
		return TrackerUpdate{}
	}
	var u TrackerUpdate
	if st.Complete != nil || st.Incomplete != nil {
		u.Peers = swarm.Int(deref(st.Complete) + deref(st.Incomplete))
	}
	u.Seeders = st.Complete
	u.Leechers = st.Incomplete
	return u
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func eventMessage(ev swarm.Event, fallback string) string {
	if ev.Message != "" {
		return ev.Message
	}
	return errMessage(ev.Err, fallback)
}

func (c *Controller) updateTrackerLocked(url string, status TrackerStatus, u TrackerUpdate) {
	c.trackers = ApplyTracker(c.trackers, url, status, u, c.now())
	c.notifyLocked()
}

func (c *Controller) updatePeerLocked(id string, status PeerStatus, u PeerUpdate) {
	next := ApplyPeer(c.peers, id, status, u, c.now())
	if len(next) == len(c.peers) && next[id] == c.peers[id] {
		return
	}
	c.peers = next
	c.notifyLocked()
}
