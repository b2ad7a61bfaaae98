package relay

// Connection tracks one live transport endpoint. Values are immutable:
// updates go through WithSessionID and are re-registered whole, so readers
// never observe a half-mutated record.
type Connection struct {
	ID          string
	Role        Role
	Transport   Transport
	DisplayName string
	SessionID   string
}

// WithSessionID returns a copy with the session id attached.
func (c Connection) WithSessionID(sessionID string) Connection {
	c.SessionID = sessionID
	return c
}

func (c Connection) IsClient() bool     { return c.Role == RoleClient }
func (c Connection) IsSupervisor() bool { return c.Role == RoleSupervisor }

// HasSession reports whether a session id has been attached yet.
func (c Connection) HasSession() bool { return nonBlank(c.SessionID) }
