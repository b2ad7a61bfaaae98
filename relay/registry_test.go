package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRegistry_RegisterGetRemove(t *testing.T) {
	registry := NewConnectionRegistry()

	registry.Register(Connection{ID: "conn-1", Role: RoleClient})
	assert.Equal(t, 1, registry.Count())

	conn, ok := registry.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, RoleClient, conn.Role)
	assert.False(t, conn.HasSession())

	// Re-registering replaces the record: the immutable-update pattern for
	// attaching a session id.
	registry.Register(conn.WithSessionID("session-1"))
	assert.Equal(t, 1, registry.Count())

	updated, ok := registry.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "session-1", updated.SessionID)

	registry.Remove("conn-1")
	assert.Equal(t, 0, registry.Count())
	_, ok = registry.Get("conn-1")
	assert.False(t, ok)

	registry.Remove("ghost") // no-op
}

func TestConnectionRegistry_ForEachSnapshot(t *testing.T) {
	registry := NewConnectionRegistry()
	for i := 0; i < 5; i++ {
		registry.Register(Connection{ID: fmt.Sprintf("conn-%d", i), Role: RoleSupervisor})
	}

	// Mutating during iteration must not corrupt the walk.
	visited := 0
	registry.ForEach(func(c Connection) bool {
		visited++
		registry.Remove(c.ID)
		registry.Register(Connection{ID: c.ID + "-new", Role: RoleClient})
		return true
	})

	assert.Equal(t, 5, visited)
	assert.Equal(t, 5, registry.Count())
}

func TestConnectionRegistry_ForEachEarlyStop(t *testing.T) {
	registry := NewConnectionRegistry()
	for i := 0; i < 5; i++ {
		registry.Register(Connection{ID: fmt.Sprintf("conn-%d", i)})
	}

	visited := 0
	registry.ForEach(func(Connection) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestConnectionRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewConnectionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", n)
			registry.Register(Connection{ID: id, Role: RoleClient})
			registry.Get(id)
			registry.ForEach(func(Connection) bool { return true })
			if n%2 == 0 {
				registry.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, registry.Count())
}
