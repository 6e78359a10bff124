// Package registry maps authenticated user ids to their single live WebSocket
// connection. It is one of the two pieces of shared mutable state in the
// real-time core (the other being the presence store) and is mutated
// concurrently by every connection handler.
package registry

import (
	"log"
	"sync"

	"github.com/pawpals/social-app/internal/metrics"
)

// Conn is the handle the registry holds for a live connection. It is
// implemented by ws.Connection; tests substitute fakes.
type Conn interface {
	// WriteMessage sends a text frame. Implementations serialize concurrent
	// writers internally.
	WriteMessage(data []byte) error

	// IsOpen reports whether the connection is still usable for writes.
	IsOpen() bool

	// Close tears down the underlying transport.
	Close() error
}

// Registry is a concurrency-safe user id -> connection map. At most one
// connection is registered per user id at any instant; registering a second
// connection for the same user replaces the first.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register inserts or replaces the entry for userID and returns the previous
// handle, if any. The caller decides whether to close the replaced handle.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	size := len(r.conns)
	r.mu.Unlock()

	metrics.RegisteredConnections.Set(float64(size))
	return prev
}

// Lookup returns the currently registered connection for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	return conn, ok
}

// Unregister removes the entry for userID only if the registered handle is
// the same handle passed in. This guards the race where a user reconnects
// before the old connection's close callback fires: the stale close must not
// clobber the newer registration. Returns true if an entry was removed.
func (r *Registry) Unregister(userID string, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if ok && current == conn {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	size := len(r.conns)
	r.mu.Unlock()

	if ok {
		metrics.RegisteredConnections.Set(float64(size))
	}
	return ok
}

// Send writes a frame to userID's connection if one is registered and still
// open. It returns false, never an error, when the user has no usable
// connection, so callers can treat delivery as best-effort and fall back to
// something else. The write happens outside the registry lock; the
// per-connection write mutex serializes concurrent senders, and frames from a
// single caller arrive in send order.
func (r *Registry) Send(userID string, frame []byte) bool {
	conn, ok := r.Lookup(userID)
	if !ok || !conn.IsOpen() {
		return false
	}

	if err := conn.WriteMessage(frame); err != nil {
		log.Printf("registry: write to user=%s failed: %v", userID, err)
		return false
	}
	return true
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.conns)
	r.mu.RUnlock()
	return n
}
