// ABOUTME: Tracks the live connection for each authenticated user.
// ABOUTME: Central lookup point for event delivery and presence checks.

package registry

import (
	"log/slog"
	"sync"
)

// Session is a live delivery endpoint for one authenticated connection.
// Implementations are owned by the transport layer; the registry only
// needs identity and a way to hand off events.
type Session interface {
	// Key uniquely identifies this connection instance. A user who
	// reconnects gets a new key.
	Key() string
	// UserID identifies the authenticated owner of the connection.
	UserID() string
	// Deliver enqueues an event for the connection. It returns false when
	// the event could not be accepted (outbound buffer full or closing).
	Deliver(event string, payload any) bool
}

// Registry maps user IDs to their current live session. Each user has at
// most one session: registering a new one supersedes the old.
type Registry struct {
	sessions map[string]Session
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		logger:   logger,
	}
}

// Register installs the session as the user's live connection. If the user
// already had a session, the newer one wins and the superseded session is
// returned so the caller can close it.
func (r *Registry) Register(s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.sessions[s.UserID()]
	r.sessions[s.UserID()] = s

	r.logger.Info("user connected",
		"user_id", s.UserID(),
		"replaced", previous != nil,
		"total_online", len(r.sessions),
	)
	return previous
}

// Unregister removes the session if it is still the user's current one.
// A stale session (already superseded by a reconnect) is left alone, so
// the call is safe from any teardown path.
func (r *Registry) Unregister(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.sessions[s.UserID()]
	if !exists || current.Key() != s.Key() {
		return
	}

	delete(r.sessions, s.UserID())
	r.logger.Info("user disconnected",
		"user_id", s.UserID(),
		"total_online", len(r.sessions),
	)
}

// Lookup returns the user's live session, if any.
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s, ok
}

// Online reports whether the user has a live session.
func (r *Registry) Online(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// OnlineUsers returns the IDs of all users with a live session.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	return users
}
