package btclient

import (
	"sync"

	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
)

// replayBus is a swarm.Bus that remembers the latest event of each slot
// and hands it to handlers that subscribe later. The torrent client fires
// events as soon as a torrent is added, usually before anyone has had a
// chance to listen.
//
// Events sharing a slot overwrite each other, so a tracker that connected
// and then failed replays only the failure.
type replayBus struct {
	swarm.Bus

	slots map[swarm.EventName]string

	mu   sync.Mutex
	last map[string]swarm.Event
	seq  map[string]uint64

	// deliver serializes slotted dispatch with replays, so a replay never
	// lands after a newer event of its slot.
	deliver sync.Mutex
}

func newReplayBus(slots map[swarm.EventName]string) *replayBus {
	return &replayBus{
		slots: slots,
		last:  make(map[string]swarm.Event),
		seq:   make(map[string]uint64),
	}
}

func (b *replayBus) Subscribe(event swarm.EventName, h swarm.Handler) swarm.SubscriptionID {
	slot, slotted := b.slots[event]

	b.mu.Lock()
	id := b.Bus.Subscribe(event, h)
	ev, ok := b.last[slot]
	seq := b.seq[slot]
	b.mu.Unlock()

	// Delivered on its own goroutine: Subscribe is typically called with
	// the subscriber's lock held and h takes that lock.
	if slotted && ok && ev.Name == event {
		go b.replay(slot, seq, h, ev)
	}
	return id
}

func (b *replayBus) Emit(ev swarm.Event) {
	slot, ok := b.slots[ev.Name]
	if !ok {
		b.Bus.Emit(ev)
		return
	}

	b.deliver.Lock()
	defer b.deliver.Unlock()
	b.mu.Lock()
	b.last[slot] = ev
	b.seq[slot]++
	b.mu.Unlock()
	b.Bus.Emit(ev)
}

func (b *replayBus) replay(slot string, seq uint64, h swarm.Handler, ev swarm.Event) {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	stale := b.seq[slot] != seq
	b.mu.Unlock()
	if stale {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Named("btclient").Errorf("replayed %s handler panicked: %v", ev.Name, r)
		}
	}()
	h(ev)
}
