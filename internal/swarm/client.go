package swarm

import (
	"context"
	"errors"
)

// ErrUnknownSession is passed to Remove callbacks for keys the client does
// not know.
var ErrUnknownSession = errors.New("unknown session")

// AddOptions tune how a client materializes a session.
type AddOptions struct {
	// DisplayName overrides the name shown for the session, if supported.
	DisplayName string
	// NoDownload asks the client not to fetch piece data.
	NoDownload bool
}

// Handle is the client's live session object. The controller only requires
// InfoHash; event subscription is checked separately through Emitter so a
// handle lacking it can be rejected as a start failure.
type Handle interface {
	// InfoHash returns the session key, or "" before it is known.
	InfoHash() string
}

// DiscoveryProvider is implemented by handles that expose their tracker
// endpoints. It is optional.
type DiscoveryProvider interface {
	DiscoverySources() []TrackerSource
}

// TrackerSource is one tracker endpoint with its own event surface.
type TrackerSource interface {
	Emitter
	AnnounceURL() string
}

// Client is the external swarm client.
type Client interface {
	// Add resolves or rejects exactly once.
	Add(ctx context.Context, identifier string, opts AddOptions) (Handle, error)
	// Remove disposes the session with the given key. If it returns an
	// error, done is never called; otherwise done is called exactly once,
	// possibly on another goroutine.
	Remove(key string, done func(error)) error
}
