package session

import (
	"sync"
	"sync/atomic"

	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"go.uber.org/zap"
)

// Category groups registrations so session, discovery and tracker
// listeners stay distinguishable while being released together.
type Category string

const (
	CategorySession   Category = "session"
	CategoryDiscovery Category = "discovery"
	CategoryTrackers  Category = "trackers"
)

type registration struct {
	source swarm.Emitter
	event  swarm.EventName
	id     swarm.SubscriptionID
	live   *atomic.Bool
}

// Registry records every subscription made on behalf of a controller and
// releases them all at once.
type Registry struct {
	mu      sync.Mutex
	entries map[Category][]registration
	log     *zap.SugaredLogger
}

func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{
		entries: make(map[Category][]registration),
		log:     log,
	}
}

// Register subscribes h to event on source and records it under cat.
// Sources without the Emitter capability are skipped with a warning.
//
// The handler is wrapped in a guard that ReleaseAll switches off before
// unsubscribing, so an emitter still holding a stale copy of its
// subscriber list cannot deliver to h once ReleaseAll has returned.
func (r *Registry) Register(source any, event swarm.EventName, h swarm.Handler, cat Category) bool {
	em, ok := source.(swarm.Emitter)
	if !ok {
		r.log.Warnf("cannot listen for %s: source %T has no subscribe capability", event, source)
		return false
	}

	live := new(atomic.Bool)
	live.Store(true)
	guarded := func(ev swarm.Event) {
		if live.Load() {
			h(ev)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := em.Subscribe(event, guarded)
	r.entries[cat] = append(r.entries[cat], registration{
		source: em,
		event:  event,
		id:     id,
		live:   live,
	})
	return true
}

// ReleaseAll unsubscribes every recorded handler in every category and
// empties the registry. Calling it on an empty registry does nothing.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, regs := range r.entries {
		for _, reg := range regs {
			reg.live.Store(false)
			reg.source.Unsubscribe(reg.event, reg.id)
			n++
		}
	}
	if n > 0 {
		r.log.Debugf("released %d listeners", n)
	}
	r.entries = make(map[Category][]registration)
}

// Len returns the number of live registrations in cat.
func (r *Registry) Len(cat Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[cat])
}

// Total returns the number of live registrations in all categories.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, regs := range r.entries {
		n += len(regs)
	}
	return n
}
