package relay

import "time"

// Session is the pairing unit between one client and at most one
// supervisor. Values are immutable; the store replaces them atomically
// under its own lock, which is what makes reads safe without copying.
type Session struct {
	ID                     string    `json:"sessionId"`
	ClientConnectionID     string    `json:"clientConnectionId"`
	SupervisorConnectionID string    `json:"supervisorConnectionId,omitempty"`
	DisplayName            string    `json:"displayName,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	LastActivityAt         time.Time `json:"lastActivityAt"`
}

// IsPaired reports whether a supervisor has been attached.
func (s Session) IsPaired() bool {
	return nonBlank(s.SupervisorConnectionID)
}

// WithSupervisor returns a paired copy. Identifiers and creation time are
// unchanged; the activity timestamp is not refreshed by pairing itself.
func (s Session) WithSupervisor(supervisorConnectionID string) Session {
	s.SupervisorConnectionID = supervisorConnectionID
	return s
}

// WithLastActivity returns a copy with the activity timestamp moved to now.
// The timestamp never goes backwards, even across a clock step.
func (s Session) WithLastActivity() Session {
	if now := time.Now(); now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
	return s
}

// IsExpired reports whether the session has been idle for at least timeout.
// The boundary is inclusive: idle for exactly the timeout means expired.
func (s Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastActivityAt) >= timeout
}

// OtherParty resolves the counterpart connection id from the asker's point
// of view. It returns false when the session is unpaired or the asker is
// neither party.
func (s Session) OtherParty(askingConnectionID string) (string, bool) {
	if !s.IsPaired() {
		return "", false
	}
	switch askingConnectionID {
	case s.ClientConnectionID:
		return s.SupervisorConnectionID, true
	case s.SupervisorConnectionID:
		return s.ClientConnectionID, true
	}
	return "", false
}
