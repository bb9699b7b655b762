// Package chat tracks which logical user owns which live connection via the
// Registry type, including duplicate-identity detection and eviction.
package chat

import (
	"strings"
	"sync"
	"time"
)

// Registry maps a user id to its single live session. Register and Unregister
// are atomic with respect to each other, so there is never a window where two
// sessions for one user id are simultaneously visible.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[Conn]string
	order    []string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[Conn]string),
	}
}

// Register binds identity to conn and returns the new session. If the user
// already holds a session on a different connection, that session is removed
// and returned as evicted; the caller must signal its connection to close.
// Registering the same connection twice fails with ErrDuplicateHandshake and
// leaves the original registration untouched.
func (r *Registry) Register(identity UserIdentity, conn Conn) (session, evicted *Session, err error) {
	userID := strings.TrimSpace(identity.UserID)
	userName := strings.TrimSpace(identity.UserName)
	if userID == "" || userName == "" {
		return nil, nil, ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[userID]; ok {
		if existing.Conn == conn {
			return nil, nil, ErrDuplicateHandshake
		}
		r.remove(existing)
		evicted = existing
	}

	session = &Session{
		UserID:      userID,
		UserName:    userName,
		Conn:        conn,
		Status:      "online",
		JoinedAt:    time.Now().UTC(),
		CurrentRoom: DefaultRoom,
	}
	r.sessions[userID] = session
	r.byConn[conn] = userID
	r.order = append(r.order, userID)

	return session, evicted, nil
}

// Unregister removes the session bound to conn and returns it. It returns nil
// when no session matches, which is normal when an eviction raced with a
// natural disconnect.
func (r *Registry) Unregister(conn Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	session := r.sessions[userID]
	r.remove(session)
	return session
}

// remove deletes a session from all indexes. Caller holds the lock.
func (r *Registry) remove(s *Session) {
	delete(r.sessions, s.UserID)
	delete(r.byConn, s.Conn)
	for i, id := range r.order {
		if id == s.UserID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the live session for userID, if any.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// SessionFor returns the session bound to conn, if any.
func (r *Registry) SessionFor(conn Conn) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	return r.sessions[userID], true
}

// List snapshots all live sessions in registration order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	return sessions
}

// Users snapshots the presence view of all live sessions in registration
// order.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.sessions[id].User())
	}
	return users
}

// Len reports how many sessions are currently live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
