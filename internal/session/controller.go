// Package session implements the monitoring session: the lifecycle
// controller, the listener registry it binds event sources through, and
// the tracker and peer status aggregators that turn events into a
// snapshot.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"go.uber.org/zap"
)

// Observer is notified of controller activity. Methods are called with the
// controller lock held and must not call back into the controller.
type Observer interface {
	StatusChanged(from, to Status)
	EventObserved(cat Category, event swarm.EventName)
}

type Options struct {
	AddOptions swarm.AddOptions
	// StopGrace delays the disposal request after listeners are released.
	StopGrace time.Duration
	Observer  Observer
	Logger    *zap.SugaredLogger
	Now       func() time.Time
}

// Controller drives one monitoring session at a time through
// idle → connecting → monitoring → stopping → idle, with error as the
// terminal state of a failed start.
//
// All state lives behind mu. The generation counter is bumped whenever a
// session is started, stopped or the controller is closed; every
// asynchronous resumption compares the generation it captured and drops
// itself when it no longer matches.
type Controller struct {
	client   swarm.Client
	opts     Options
	log      *zap.SugaredLogger
	now      func() time.Time
	registry *Registry

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    Status
	handle    swarm.Handle
	infoHash  string
	lastError string
	err       error
	trackers  TrackerMap
	peers     PeerMap
	gen       uint64
	closed    bool
	watchers  map[uint64]chan struct{}
	nextWatch uint64
}

func NewController(client swarm.Client, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logging.Named("session")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:   client,
		opts:     opts,
		log:      log,
		now:      now,
		registry: NewRegistry(log.Named("listeners")),
		ctx:      ctx,
		cancel:   cancel,
		trackers: TrackerMap{},
		peers:    PeerMap{},
		watchers: make(map[uint64]chan struct{}),
	}
}

// Start begins monitoring identifier. It returns immediately; progress is
// observed through Snapshot and Watch. Start is ignored unless the
// controller is idle or in error.
func (c *Controller) Start(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.log.Debugf("start %q ignored: controller closed", identifier)
		return
	}
	if !c.status.Startable() {
		c.log.Debugf("start %q ignored while %s", identifier, c.status)
		return
	}

	c.registry.ReleaseAll()
	c.gen++
	gen := c.gen
	c.resetLocked()
	c.setErrorLocked(nil, "")
	c.setStatusLocked(StatusConnecting)
	c.log.Infof("starting session for %s", identifier)

	go c.add(gen, identifier)
}

func (c *Controller) add(gen uint64, identifier string) {
	h, err := c.client.Add(c.ctx, identifier, c.opts.AddOptions)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		if err == nil && h != nil {
			c.log.Infof("disposing session %s that resolved after stop", h.InfoHash())
			go c.removeQuietly(h)
		}
		return
	}

	var em swarm.Emitter
	if err == nil {
		if h == nil {
			err = ErrInvalidHandle
		} else if e, ok := h.(swarm.Emitter); ok {
			em = e
		} else {
			err = fmt.Errorf("%w: %T cannot subscribe to events", ErrInvalidHandle, h)
		}
	}
	if err != nil {
		c.log.Warnf("failed to start monitoring %s: %v", identifier, err)
		c.registry.ReleaseAll()
		c.handle = nil
		c.setErrorLocked(fmt.Errorf("%w: %w", ErrStartFailure, err), err.Error())
		c.setStatusLocked(StatusError)
		return
	}

	c.handle = h
	if ih := h.InfoHash(); ih != "" {
		c.infoHash = ih
	}
	c.bindSessionLocked(gen, em)
	c.attachTrackersLocked(gen)
	c.notifyLocked()
}

// Stop ends the current session. Listeners are released synchronously;
// the handle is disposed in the background and the controller settles to
// idle, or to error when the removal call itself fails. Stop is ignored
// unless connecting or monitoring.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.status.Active() {
		c.log.Debugf("stop ignored while %s", c.status)
		return
	}

	c.gen++
	gen := c.gen
	c.registry.ReleaseAll()

	h := c.handle
	if h == nil {
		// Add has not resolved; its handle is disposed when it does.
		c.log.Infof("session cancelled before it was established")
		c.resetLocked()
		c.setStatusLocked(StatusIdle)
		return
	}

	c.log.Infof("stopping session %s", h.InfoHash())
	c.setStatusLocked(StatusStopping)
	go c.remove(gen, h)
}

func (c *Controller) remove(gen uint64, h swarm.Handle) {
	if c.opts.StopGrace > 0 {
		t := time.NewTimer(c.opts.StopGrace)
		select {
		case <-t.C:
		case <-c.ctx.Done():
			t.Stop()
		}
	}

	key := h.InfoHash()
	err := c.callRemove(key, func(removeErr error) {
		c.finishStop(gen, key, removeErr)
	})
	if err != nil {
		c.failStop(gen, key, err)
	}
}

// callRemove converts a panicking Remove into an error.
func (c *Controller) callRemove(key string, done func(error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remove %s panicked: %v", key, r)
		}
	}()
	return c.client.Remove(key, done)
}

func (c *Controller) finishStop(gen uint64, key string, removeErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}

	c.resetLocked()
	if removeErr != nil {
		c.log.Warnf("error removing session %s: %v", key, removeErr)
		c.setErrorLocked(fmt.Errorf("%w: %w", ErrRemovalFailure, removeErr), removeErr.Error())
	} else {
		c.log.Infof("session %s removed", key)
		c.setErrorLocked(nil, "")
	}
	c.setStatusLocked(StatusIdle)
}

func (c *Controller) failStop(gen uint64, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}

	c.log.Errorf("error initiating removal of session %s: %v", key, err)
	c.resetLocked()
	c.setErrorLocked(fmt.Errorf("%w: %w", ErrRemovalFailure, err), err.Error())
	c.setStatusLocked(StatusError)
}

func (c *Controller) removeQuietly(h swarm.Handle) {
	key := h.InfoHash()
	err := c.callRemove(key, func(err error) {
		if err != nil {
			c.log.Debugf("discarded removal result for %s: %v", key, err)
		}
	})
	if err != nil {
		c.log.Debugf("discarded removal error for %s: %v", key, err)
	}
}

// Close tears the controller down. Listeners are released, pending
// callbacks are discarded and the session state is cleared to idle, keeping
// lastError. Watch channels are closed and a live session is removed
// without waiting for the result. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.registry.ReleaseAll()

	h := c.handle
	removing := c.status == StatusStopping
	c.resetLocked()
	c.setStatusLocked(StatusIdle)
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
	c.mu.Unlock()

	c.cancel()
	if h != nil && !removing {
		c.removeQuietly(h)
	}
}

// Snapshot returns the current state. The maps are copies owned by the
// caller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:    c.status,
		InfoHash:  c.infoHash,
		LastError: c.lastError,
		Trackers:  c.trackers,
		Peers:     c.peers,
	}.Clone()
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the last surfaced error, wrapping one of the Err* kinds.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Watch returns a channel that receives a value after every state change.
// Notifications coalesce: a slow reader sees one pending value, then
// re-reads Snapshot. The cancel function closes the channel; Close closes
// all of them.
func (c *Controller) Watch() (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan struct{}, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.nextWatch++
	id := c.nextWatch
	c.watchers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}
}

func (c *Controller) notifyLocked() {
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	from := c.status
	c.status = s
	c.log.Debugf("status %s -> %s", from, s)
	if c.opts.Observer != nil {
		c.opts.Observer.StatusChanged(from, s)
	}
	c.notifyLocked()
}

func (c *Controller) setErrorLocked(err error, msg string) {
	c.err = err
	c.lastError = msg
	c.notifyLocked()
}

func (c *Controller) resetLocked() {
	c.handle = nil
	c.infoHash = ""
	c.trackers = TrackerMap{}
	c.peers = PeerMap{}
}
