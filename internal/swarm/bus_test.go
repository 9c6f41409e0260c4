package swarm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDispatchesInSubscriptionOrder(t *testing.T) {
	var b Bus
	var got []string

	b.Subscribe(EventReady, func(Event) { got = append(got, "first") })
	b.Subscribe(EventReady, func(Event) { got = append(got, "second") })
	b.Subscribe(EventClose, func(Event) { got = append(got, "close") })

	b.Emit(Event{Name: EventReady})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBusPassesPayload(t *testing.T) {
	var b Bus
	var got Event
	b.Subscribe(EventPeerConnect, func(ev Event) { got = ev })

	want := Event{Name: EventPeerConnect, PeerID: "p1", ConnType: "tcp", Addr: "10.0.0.1:6881"}
	b.Emit(want)

	assert.Equal(t, want, got)
}

func TestBusUnsubscribe(t *testing.T) {
	var b Bus
	calls := 0
	id := b.Subscribe(EventUpdate, func(Event) { calls++ })
	require.Equal(t, 1, b.Count(EventUpdate))

	b.Unsubscribe(EventUpdate, id)
	b.Unsubscribe(EventUpdate, id) // unknown id is ignored
	b.Emit(Event{Name: EventUpdate})

	assert.Zero(t, calls)
	assert.Zero(t, b.Total())
}

func TestBusHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	var b Bus
	calls := 0
	var second SubscriptionID
	b.Subscribe(EventClose, func(Event) {
		calls++
		b.Unsubscribe(EventClose, second)
	})
	second = b.Subscribe(EventClose, func(Event) { calls++ })

	// The in-flight emission still sees the snapshot taken before dispatch.
	b.Emit(Event{Name: EventClose})
	assert.Equal(t, 2, calls)

	b.Emit(Event{Name: EventClose})
	assert.Equal(t, 3, calls)
}

func TestBusRecoversPanics(t *testing.T) {
	var b Bus
	reached := false
	b.Subscribe(EventError, func(Event) { panic(errors.New("boom")) })
	b.Subscribe(EventError, func(Event) { reached = true })

	assert.NotPanics(t, func() { b.Emit(Event{Name: EventError}) })
	assert.True(t, reached)
}

func TestInt(t *testing.T) {
	p := Int(5)
	require.NotNil(t, p)
	assert.Equal(t, 5, *p)
}
