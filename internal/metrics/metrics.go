// Package metrics exposes controller activity and the current snapshot as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

// Snapshotter is satisfied by *session.Controller.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// Collector counts controller activity. It implements session.Observer.
type Collector struct {
	reg prometheus.Registerer

	transitions     *prometheus.CounterVec
	events          *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	sessionsFailed  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmwatch_status_transitions_total",
			Help: "Session status transitions",
		}, []string{"from", "to"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmwatch_events_total",
			Help: "Swarm events handled, by listener category",
		}, []string{"category", "event"}),
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmwatch_sessions_started_total",
			Help: "Sessions started",
		}),
		sessionsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmwatch_sessions_failed_total",
			Help: "Sessions that ended in the error state",
		}),
	}
}

func (c *Collector) StatusChanged(from, to session.Status) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
	switch to {
	case session.StatusConnecting:
		c.sessionsStarted.Inc()
	case session.StatusError:
		c.sessionsFailed.Inc()
	}
}

func (c *Collector) EventObserved(cat session.Category, event swarm.EventName) {
	c.events.WithLabelValues(string(cat), string(event)).Inc()
}

// Attach registers gauges computed from s on every scrape.
func (c *Collector) Attach(s Snapshotter) error {
	return c.reg.Register(newSnapshotCollector(s))
}

var statuses = []session.Status{
	session.StatusIdle,
	session.StatusConnecting,
	session.StatusMonitoring,
	session.StatusStopping,
	session.StatusError,
}

var trackerStatuses = []session.TrackerStatus{
	session.TrackerConnecting,
	session.TrackerConnected,
	session.TrackerClosed,
	session.TrackerError,
	session.TrackerUnknown,
}

var peerStatuses = []session.PeerStatus{
	session.PeerConnecting,
	session.PeerConnected,
	session.PeerDestroyed,
}

type snapshotCollector struct {
	src Snapshotter

	status   *prometheus.Desc
	trackers *prometheus.Desc
	peers    *prometheus.Desc
	seeders  *prometheus.Desc
	leechers *prometheus.Desc
}

func newSnapshotCollector(src Snapshotter) *snapshotCollector {
	return &snapshotCollector{
		src: src,
		status: prometheus.NewDesc("swarmwatch_session_status",
			"1 for the current session status, 0 otherwise", []string{"status"}, nil),
		trackers: prometheus.NewDesc("swarmwatch_trackers",
			"Trackers by status", []string{"status"}, nil),
		peers: prometheus.NewDesc("swarmwatch_peers",
			"Peers by status", []string{"status"}, nil),
		seeders: prometheus.NewDesc("swarmwatch_tracker_seeders",
			"Seeders last reported by a tracker", []string{"tracker"}, nil),
		leechers: prometheus.NewDesc("swarmwatch_tracker_leechers",
			"Leechers last reported by a tracker", []string{"tracker"}, nil),
	}
}

func (sc *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.status
	ch <- sc.trackers
	ch <- sc.peers
	ch <- sc.seeders
	ch <- sc.leechers
}

func (sc *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := sc.src.Snapshot()

	for _, s := range statuses {
		v := 0.0
		if snap.Status == s {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(sc.status, prometheus.GaugeValue, v, s.String())
	}

	byTracker := make(map[session.TrackerStatus]int)
	for url, rec := range snap.Trackers {
		byTracker[rec.Status]++
		if rec.Seeders != nil {
			ch <- prometheus.MustNewConstMetric(sc.seeders, prometheus.GaugeValue, float64(*rec.Seeders), url)
		}
		if rec.Leechers != nil {
			ch <- prometheus.MustNewConstMetric(sc.leechers, prometheus.GaugeValue, float64(*rec.Leechers), url)
		}
	}
	for _, s := range trackerStatuses {
		ch <- prometheus.MustNewConstMetric(sc.trackers, prometheus.GaugeValue, float64(byTracker[s]), string(s))
	}

	byPeer := make(map[session.PeerStatus]int)
	for _, rec := range snap.Peers {
		byPeer[rec.Status]++
	}
	for _, s := range peerStatuses {
		ch <- prometheus.MustNewConstMetric(sc.peers, prometheus.GaugeValue, float64(byPeer[s]), string(s))
	}
}
