// ABOUTME: Tests for the live-connection registry
// ABOUTME: Covers last-writer-wins registration and stale unregister safety

package registry

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	key    string
	userID string

	mu        sync.Mutex
	delivered []string
}

func (f *fakeSession) Key() string    { return f.key }
func (f *fakeSession) UserID() string { return f.userID }

func (f *fakeSession) Deliver(event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, event)
	return true
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := newTestRegistry()
	session := &fakeSession{key: "conn-1", userID: "user-1"}

	replaced := reg.Register(session)
	assert.Nil(t, replaced)

	found, ok := reg.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", found.Key())
	assert.True(t, reg.Online("user-1"))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Lookup_NotRegistered(t *testing.T) {
	reg := newTestRegistry()

	_, ok := reg.Lookup("user-1")
	assert.False(t, ok)
	assert.False(t, reg.Online("user-1"))
}

func TestRegistry_Register_LastWriterWins(t *testing.T) {
	reg := newTestRegistry()
	first := &fakeSession{key: "conn-1", userID: "user-1"}
	second := &fakeSession{key: "conn-2", userID: "user-1"}

	reg.Register(first)
	replaced := reg.Register(second)

	require.NotNil(t, replaced)
	assert.Equal(t, "conn-1", replaced.Key())

	found, ok := reg.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-2", found.Key())
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Unregister(t *testing.T) {
	reg := newTestRegistry()
	session := &fakeSession{key: "conn-1", userID: "user-1"}

	reg.Register(session)
	reg.Unregister(session)

	assert.False(t, reg.Online("user-1"))
	assert.Equal(t, 0, reg.Count())

	// Repeat unregister is a no-op
	reg.Unregister(session)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_Unregister_StaleSessionLeavesCurrent(t *testing.T) {
	reg := newTestRegistry()
	stale := &fakeSession{key: "conn-1", userID: "user-1"}
	current := &fakeSession{key: "conn-2", userID: "user-1"}

	reg.Register(stale)
	reg.Register(current)

	// Teardown of the superseded connection must not evict the new one
	reg.Unregister(stale)

	found, ok := reg.Lookup("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-2", found.Key())
}

func TestRegistry_OnlineUsers(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeSession{key: "conn-1", userID: "user-1"})
	reg.Register(&fakeSession{key: "conn-2", userID: "user-2"})

	users := reg.OnlineUsers()
	assert.Len(t, users, 2)
	assert.Contains(t, users, "user-1")
	assert.Contains(t, users, "user-2")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		userID := string(rune('a' + i))
		go func() {
			defer wg.Done()
			reg.Register(&fakeSession{key: "conn-" + userID, userID: userID})
		}()
		go func() {
			defer wg.Done()
			reg.Lookup(userID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reg.Count())
}
