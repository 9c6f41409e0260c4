package swarm

import (
	"runtime/debug"
	"sync"

	"github.com/swarmwatch/swarmwatch/internal/logging"
)

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a synchronous Emitter. Handlers run on the goroutine calling Emit,
// in subscription order. The zero value is ready to use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventName][]subscription
	nextID SubscriptionID
}

// Subscribe registers h for event.
func (b *Bus) Subscribe(event EventName, h Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[EventName][]subscription)
	}
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: b.nextID, handler: h})
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(event EventName, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, sub := range subs {
		if sub.id == id {
			// Copy so a concurrent Emit iterating the old slice is unaffected.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, event)
			} else {
				b.subs[event] = next
			}
			return
		}
	}
}

// Emit delivers ev to every handler subscribed to ev.Name. The subscriber
// list is copied before dispatch, so handlers may subscribe or unsubscribe.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Name]))
	copy(subs, b.subs[ev.Name])
	b.mu.RUnlock()

	for _, sub := range subs {
		safeCall(sub.handler, ev)
	}
}

// Count returns the number of subscriptions for event.
func (b *Bus) Count(event EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Total returns the number of subscriptions across all events.
func (b *Bus) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

func safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Named("swarm").Errorf("handler for %s panicked: %v\n%s", ev.Name, r, debug.Stack())
		}
	}()
	h(ev)
}
