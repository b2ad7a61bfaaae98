package relay

import "sync"

// ConnectionRegistry maps connection ids to their live Connection records.
// Pure storage: no pairing logic lives here. One instance is shared by all
// transport handlers, so every operation is safe under concurrent use.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]Connection)}
}

// Register inserts or replaces the record keyed by its connection id.
// Replacing is how a session id gets attached after creation: callers build
// an updated copy with WithSessionID and register it again.
func (r *ConnectionRegistry) Register(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Get looks up a connection. Absence is not an error; callers decide.
func (r *ConnectionRegistry) Get(connectionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connectionID]
	return c, ok
}

// Remove deletes the record. No-op when absent.
func (r *ConnectionRegistry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connectionID)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEach visits a momentary snapshot of the registry. The visitor runs
// outside the registry lock, so it may perform transport writes and even
// mutate the registry without corrupting iteration. Returning false stops
// the walk early.
func (r *ConnectionRegistry) ForEach(visit func(Connection) bool) {
	r.mu.RLock()
	snapshot := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		if !visit(c) {
			return
		}
	}
}
