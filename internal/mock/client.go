// Package mock provides a simulated swarm client for demos and UI work.
// Sessions connect to a fixed set of fake trackers and churn through peers
// on a ticker, without touching the network.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/swarmwatch/swarmwatch/internal/btclient"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"go.uber.org/zap"
)

type Options struct {
	// Tick is the simulation step. Defaults to 500ms.
	Tick time.Duration
	// Seed makes peer churn reproducible. Zero seeds from the clock.
	Seed int64
	// MaxPeers caps concurrently known peers per session. Defaults to 24.
	MaxPeers int
}

// Client is a swarm.Client whose sessions are simulated.
type Client struct {
	opts Options
	log  *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*mockSession
	seeds    int64
}

func NewClient(opts Options) *Client {
	if opts.Tick <= 0 {
		opts.Tick = 500 * time.Millisecond
	}
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = 24
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Client{
		opts:     opts,
		log:      logging.Named("mock"),
		sessions: make(map[string]*mockSession),
	}
}

// Add accepts the same identifiers as the real client.
func (c *Client) Add(ctx context.Context, identifier string, _ swarm.AddOptions) (swarm.Handle, error) {
	src, err := btclient.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[src.InfoHash]; ok {
		return nil, fmt.Errorf("%w: %s", btclient.ErrDuplicate, src.InfoHash)
	}
	c.seeds++
	ms := newMockSession(src.InfoHash, rand.New(rand.NewSource(c.opts.Seed+c.seeds)), c.opts.MaxPeers)
	runCtx, cancel := context.WithCancel(context.Background())
	ms.cancel = cancel
	c.sessions[src.InfoHash] = ms

	ms.wg.Add(1)
	go c.run(runCtx, ms)
	c.log.Infof("simulating swarm for %s", src.InfoHash)
	return ms.handle, nil
}

func (c *Client) Remove(key string, done func(error)) error {
	c.mu.Lock()
	ms, ok := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if !ok {
		go done(fmt.Errorf("%w: %s", swarm.ErrUnknownSession, key))
		return nil
	}
	ms.cancel()
	go func() {
		ms.wg.Wait()
		c.log.Infof("simulation for %s stopped", key)
		done(nil)
	}()
	return nil
}

// Close stops every simulation.
func (c *Client) Close() error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*mockSession)
	c.mu.Unlock()

	for _, ms := range sessions {
		ms.cancel()
		ms.wg.Wait()
	}
	return nil
}

func (c *Client) run(ctx context.Context, ms *mockSession) {
	defer ms.wg.Done()
	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The script starts once someone listens.
			if tick == 0 && ms.handle.Count(swarm.EventReady) == 0 {
				continue
			}
			tick++
			ms.advance(tick)
		}
	}
}
