package btclient

import (
	"context"
	"time"

	"github.com/anacrolix/torrent/tracker"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

// probe announces to an http or udp tracker at the configured interval and
// reports the swarm counts it returns.
func (c *Client) probe(h *Handle, s *trackerSource) {
	interval := c.cfg.TrackerProbeInterval
	for {
		next := c.announce(h, s)
		if next < interval {
			next = interval
		}
		timer := time.NewTimer(next)
		select {
		case <-timer.C:
		case <-h.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// announce performs one announce and returns the interval the tracker
// asked for.
func (c *Client) announce(h *Handle, s *trackerSource) time.Duration {
	ctx, cancel := context.WithTimeout(h.ctx, c.cfg.TrackerProbeTimeout)
	defer cancel()

	res, err := tracker.Announce{
		TrackerUrl: s.url,
		Context:    ctx,
		Request: tracker.AnnounceRequest{
			InfoHash: h.t.InfoHash(),
			PeerId:   c.cl.PeerID(),
			Port:     uint16(c.cl.LocalPort()),
			Left:     -1,
			NumWant:  -1,
		},
	}.Do()
	if h.ctx.Err() != nil {
		return 0
	}
	if err != nil {
		c.log.Debugf("announce to %s for %s failed: %v", s.url, h.infoHash, err)
		s.Emit(swarm.Event{Name: swarm.EventSocketError, Err: err, Message: err.Error()})
		return 0
	}

	s.Emit(swarm.Event{Name: swarm.EventUpdate, Stats: announceStats(res)})
	h.Emit(swarm.Event{Name: swarm.EventTrackerAnnounce})
	return time.Duration(res.Interval) * time.Second
}

func announceStats(res tracker.AnnounceResponse) *swarm.TrackerStats {
	return &swarm.TrackerStats{
		Complete:   swarm.Int(int(res.Seeders)),
		Incomplete: swarm.Int(int(res.Leechers)),
	}
}
