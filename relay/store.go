package relay

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidClientID is returned by Create when the client connection id is
// empty or blank. The reference behavior was inconsistent here; rejecting
// keeps the pairing invariant trivially true, so that is the policy
// everywhere.
var ErrInvalidClientID = errors.New("relay: client connection id must not be blank")

// SessionStore owns the lifecycle of pairing sessions. Sessions are
// immutable values replaced atomically under the store mutex, so two
// concurrent pairing attempts on the same id linearize instead of
// interleaving into a corrupted record. No transport I/O ever happens under
// the lock.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

// Create generates a fresh unpaired session for the client connection, with
// both timestamps set to now.
func (s *SessionStore) Create(clientConnectionID, displayName string) (Session, error) {
	if !nonBlank(clientConnectionID) {
		return Session{}, ErrInvalidClientID
	}

	now := time.Now()
	sess := Session{
		ID:                 uuid.New().String(),
		ClientConnectionID: clientConnectionID,
		DisplayName:        displayName,
		CreatedAt:          now,
		LastActivityAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Pair attaches a supervisor to the session and returns the paired copy.
// It returns false (not an error) when the session does not exist or the
// supervisor id is blank. Pairing an already-paired session overwrites the
// previous supervisor — last writer wins, matching observed behavior; a
// stricter policy would check IsPaired inside this same critical section.
func (s *SessionStore) Pair(sessionID, supervisorConnectionID string) (Session, bool) {
	if !nonBlank(supervisorConnectionID) {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	paired := sess.WithSupervisor(supervisorConnectionID)
	s.sessions[sessionID] = paired
	return paired, true
}

// Get looks up a session by id.
func (s *SessionStore) Get(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Remove deletes a session. No-op when absent.
func (s *SessionStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Touch refreshes the session's last-activity timestamp. No-op when absent.
func (s *SessionStore) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		s.sessions[sessionID] = sess.WithLastActivity()
	}
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Unpaired returns the sessions still waiting for a supervisor, oldest
// first, as a snapshot safe to use outside the lock.
func (s *SessionStore) Unpaired() []Session {
	s.mu.RLock()
	waiting := make([]Session, 0)
	for _, sess := range s.sessions {
		if !sess.IsPaired() {
			waiting = append(waiting, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting
}

// Sweep removes every session idle for at least timeout and returns the
// removed sessions so the caller can notify their parties and refresh the
// supervisor queue.
func (s *SessionStore) Sweep(timeout time.Duration) []Session {
	s.mu.Lock()
	var expired []Session
	for id, sess := range s.sessions {
		if sess.IsExpired(timeout) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	return expired
}
