// Package chat owns room metadata and membership via the Directory type.
package chat

import (
	"strings"
	"sync"
	"time"
)

// Directory owns the set of rooms, their membership, and activity metadata.
// Rooms are never deleted, even when their participant list empties.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string
}

// NewDirectory creates an empty room directory.
func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*Room)}
}

// Create registers a new room and returns a copy of it. requestedID may be
// empty, in which case an id is generated. A requestedID that is already
// taken fails with ErrRoomAlreadyExists rather than replacing the existing
// room; the default room's id is implicitly taken and can never be claimed.
// The creator is always the first participant.
func (d *Directory) Create(name, kind, creatorID, requestedID string, at time.Time) (Room, error) {
	id := strings.TrimSpace(requestedID)
	if id == "" {
		id = newRoomID()
	} else if id == DefaultRoom {
		return Room{}, ErrRoomAlreadyExists
	}
	if kind != RoomKindDirect {
		kind = RoomKindGroup
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.rooms[id]; exists {
		return Room{}, ErrRoomAlreadyExists
	}

	room := &Room{
		ID:           id,
		Name:         name,
		Kind:         kind,
		Participants: []string{creatorID},
		CreatedBy:    creatorID,
		CreatedAt:    at,
		LastActivity: at,
	}
	d.rooms[id] = room
	d.order = append(d.order, id)

	return copyRoom(room), nil
}

// Join adds userID to the room's participants. Joining a room the user is
// already in is a no-op, not an error.
func (d *Directory) Join(roomID, userID string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if !contains(room.Participants, userID) {
		room.Participants = append(room.Participants, userID)
	}
	return copyRoom(room), nil
}

// Leave removes userID from the room's participants. Leaving a room the user
// is not in is a no-op. The room survives even when its last participant
// leaves.
func (d *Directory) Leave(roomID, userID string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	for i, id := range room.Participants {
		if id == userID {
			room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
			break
		}
	}
	return copyRoom(room), nil
}

// Get returns a copy of the room, if present.
func (d *Directory) Get(roomID string) (Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return copyRoom(room), true
}

// List snapshots all rooms in creation order.
func (d *Directory) List() []Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]Room, 0, len(d.order))
	for _, id := range d.order {
		rooms = append(rooms, copyRoom(d.rooms[id]))
	}
	return rooms
}

// Touch updates the room's activity timestamp and last-message preview. A
// missing room is a benign race with concurrent room operations, so Touch is
// silently a no-op rather than an error.
func (d *Directory) Touch(roomID, preview string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return
	}
	room.LastActivity = at
	room.LastMessage = preview
}

// Len reports how many rooms exist.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func copyRoom(r *Room) Room {
	out := *r
	out.Participants = append([]string(nil), r.Participants...)
	return out
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
