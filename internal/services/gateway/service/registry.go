package service

import "sync"

// Registry maps session identifiers to their SSE transports. It is owned by
// the Gateway and shared by the connection endpoint, the message endpoint,
// and the shutdown path; transports are immutable references once inserted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SSETransport
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*SSETransport)}
}

// Put inserts the transport under id, overwriting any prior entry.
// Identifiers are server-generated per connection, so an overwrite is not
// expected in practice and is treated as a plain replacement.
func (r *Registry) Put(id string, t *SSETransport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = t
}

// Get returns the transport for id, if registered.
func (r *Registry) Get(id string) (*SSETransport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.sessions[id]
	return t, ok
}

// Remove deletes the entry for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot copies the current transports into a slice so callers can iterate
// while entries are concurrently removed.
func (r *Registry) Snapshot() []*SSETransport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	transports := make([]*SSETransport, 0, len(r.sessions))
	for _, t := range r.sessions {
		transports = append(transports, t)
	}
	return transports
}

// Drain removes every entry and returns the transports that were registered.
// Closing them is the caller's responsibility; removal and closure are
// independent steps.
func (r *Registry) Drain() []*SSETransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	transports := make([]*SSETransport, 0, len(r.sessions))
	for _, t := range r.sessions {
		transports = append(transports, t)
	}
	r.sessions = make(map[string]*SSETransport)
	return transports
}
