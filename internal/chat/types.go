// Package chat defines the entity types shared across the coordination core:
// identities, sessions, rooms, and messages.
package chat

import "time"

// DefaultRoom is the implicit room every connection belongs to while online.
// It is never listed in the room directory; its membership is "everyone with
// a live session" and its history is kept in the message log like any other
// room.
const DefaultRoom = "general"

// Message type discriminators. System messages are synthetic join/leave/welcome
// notices appended alongside user-authored messages.
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// Room kinds.
const (
	RoomKindGroup  = "group"
	RoomKindDirect = "direct"
)

// UserIdentity is the stable identity a client presents at handshake time.
// Both fields are supplied by the client; the server never generates them.
type UserIdentity struct {
	UserID   string
	UserName string
}

// User is the presence-facing shape of an online user.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joinTime"`
	Room     string    `json:"room"`
}

// Conn is the outward half of one live client connection. Send must never
// block: implementations queue the event for delivery and report false when
// the connection can no longer accept writes. Close tears the transport down;
// it must be safe to call more than once and from any goroutine.
type Conn interface {
	Send(Event) bool
	Close()
}

// Session binds a user identity to exactly one live connection. Sessions are
// owned by the Registry; at most one exists per user id at any instant.
type Session struct {
	UserID      string
	UserName    string
	Conn        Conn
	Status      string
	JoinedAt    time.Time
	CurrentRoom string
}

// User returns the presence view of the session.
func (s *Session) User() User {
	return User{
		ID:       s.UserID,
		Name:     s.UserName,
		Status:   s.Status,
		JoinedAt: s.JoinedAt,
		Room:     s.CurrentRoom,
	}
}

// Sender identifies the author of a message.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is one entry in a room's append-only history. Messages are
// immutable once recorded.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Room is a named membership scope with its own message history.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         string    `json:"type"`
	Participants []string  `json:"participants"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	LastMessage  string    `json:"lastMessage,omitempty"`
}
