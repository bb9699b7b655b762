// Package chat keeps per-room append-only message history via the Log type.
package chat

import "sync"

// Log stores one append-only message sequence per room id. Append order is
// the total order of a room's history; entries are never reordered or
// deleted.
type Log struct {
	mu     sync.RWMutex
	byRoom map[string][]Message
	ids    idGenerator
}

// NewLog creates an empty message log.
func NewLog() *Log {
	return &Log{byRoom: make(map[string][]Message)}
}

// Append records msg under roomID and returns the stored form. Missing id or
// timestamp fields are assigned here. An unknown roomID gets a fresh sequence
// rather than an error, which keeps ingestion simple for default-room traffic
// that predates any explicit room creation.
func (l *Log) Append(roomID string, msg Message) Message {
	msg.RoomID = roomID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = utcNow()
	}
	if msg.ID == "" {
		msg.ID = l.ids.messageID(msg.Timestamp)
	}
	if msg.Type == "" {
		msg.Type = MessageTypeUser
	}

	l.mu.Lock()
	l.byRoom[roomID] = append(l.byRoom[roomID], msg)
	l.mu.Unlock()

	return msg
}

// List returns a copy of the room's full history in append order. Unknown
// rooms yield an empty slice.
func (l *Log) List(roomID string) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	messages := l.byRoom[roomID]
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// Count reports how many messages a room's history holds.
func (l *Log) Count(roomID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byRoom[roomID])
}
