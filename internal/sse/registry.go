// Package sse implements the real-time notification core: per-channel
// connection registries, the event stream handler, and the fan-out
// dispatcher that write paths call after persisting.
package sse

import (
	"sync"

	"github.com/google/uuid"
)

// DeliverFunc pushes one opaque event payload onto a live stream.
// Implementations must not block; a failed write is swallowed because
// the stream's own abort handling tears the connection down.
type DeliverFunc func(payload string)

// Registry tracks which user currently holds an open stream on one
// channel. All state is in-memory and lost on restart.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]DeliverFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]DeliverFunc)}
}

// Register installs the delivery capability for a user. A second stream
// opened by the same user overwrites the first entry (last write wins);
// the orphaned stream deregisters itself when its own client disconnect
// fires, which may momentarily remove the newer entry as well.
func (r *Registry) Register(userID uuid.UUID, deliver DeliverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = deliver
}

// Deregister removes the user's entry. Calling it for an absent user is
// a no-op, so error and cancellation paths may both call it.
func (r *Registry) Deregister(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}

// Lookup returns the delivery capability for a connected user.
func (r *Registry) Lookup(userID uuid.UUID) (DeliverFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deliver, ok := r.entries[userID]
	return deliver, ok
}

// Len reports how many streams are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
