package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSession(supervisorID string, lastActivity time.Time) Session {
	return Session{
		ID:                     "session-1",
		ClientConnectionID:     "client-1",
		SupervisorConnectionID: supervisorID,
		CreatedAt:              lastActivity,
		LastActivityAt:         lastActivity,
	}
}

func TestSession_IsPaired(t *testing.T) {
	now := time.Now()

	assert.False(t, newTestSession("", now).IsPaired())
	assert.False(t, newTestSession("   ", now).IsPaired())
	assert.True(t, newTestSession("supervisor-1", now).IsPaired())
}

func TestSession_WithSupervisor_PreservesIdentity(t *testing.T) {
	now := time.Now()
	unpaired := newTestSession("", now)

	paired := unpaired.WithSupervisor("supervisor-9")

	assert.True(t, paired.IsPaired())
	assert.Equal(t, "supervisor-9", paired.SupervisorConnectionID)
	assert.Equal(t, unpaired.ID, paired.ID)
	assert.Equal(t, unpaired.ClientConnectionID, paired.ClientConnectionID)
	assert.Equal(t, unpaired.CreatedAt, paired.CreatedAt)
	assert.Equal(t, unpaired.LastActivityAt, paired.LastActivityAt, "pairing must not refresh activity")
	assert.False(t, unpaired.IsPaired(), "original value is unchanged")
}

func TestSession_IsExpired_Boundary(t *testing.T) {
	timeout := 30 * time.Minute

	atBoundary := newTestSession("", time.Now().Add(-timeout))
	assert.True(t, atBoundary.IsExpired(timeout), "idle for exactly the timeout is expired")

	justInside := newTestSession("", time.Now().Add(-(timeout - time.Minute)))
	assert.False(t, justInside.IsExpired(timeout))

	longIdle := newTestSession("", time.Now().Add(-time.Hour))
	assert.True(t, longIdle.IsExpired(timeout))
}

func TestSession_WithLastActivity(t *testing.T) {
	stale := newTestSession("supervisor-1", time.Now().Add(-time.Hour))
	timeout := 30 * time.Minute
	assert.True(t, stale.IsExpired(timeout))

	refreshed := stale.WithLastActivity()

	assert.False(t, refreshed.IsExpired(timeout))
	assert.True(t, refreshed.LastActivityAt.After(stale.LastActivityAt))
	assert.Equal(t, stale.ID, refreshed.ID)
	assert.Equal(t, stale.ClientConnectionID, refreshed.ClientConnectionID)
	assert.Equal(t, stale.SupervisorConnectionID, refreshed.SupervisorConnectionID)
	assert.True(t, refreshed.IsPaired())
}

func TestSession_WithLastActivity_NeverDecreases(t *testing.T) {
	future := newTestSession("", time.Now().Add(time.Hour))

	refreshed := future.WithLastActivity()

	assert.Equal(t, future.LastActivityAt, refreshed.LastActivityAt,
		"an already-ahead timestamp must not move backwards")
}

func TestSession_OtherParty(t *testing.T) {
	now := time.Now()
	paired := newTestSession("supervisor-1", now)

	other, ok := paired.OtherParty("client-1")
	assert.True(t, ok)
	assert.Equal(t, "supervisor-1", other)

	other, ok = paired.OtherParty("supervisor-1")
	assert.True(t, ok)
	assert.Equal(t, "client-1", other)

	_, ok = paired.OtherParty("stranger")
	assert.False(t, ok, "neither party gets no counterpart")

	unpaired := newTestSession("", now)
	_, ok = unpaired.OtherParty("client-1")
	assert.False(t, ok, "unpaired sessions have no counterpart")
}
