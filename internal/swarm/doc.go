// Package swarm defines the narrow contract between the session controller
// and a swarm client: adding and removing sessions, the events a session
// and its tracker endpoints emit, and a small synchronous event bus that
// client implementations can embed to satisfy Emitter.
//
// Emitters must not hold internal locks while dispatching to handlers:
// handlers take the controller's lock and may unsubscribe re-entrantly.
package swarm
