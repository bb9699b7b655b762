// Package chat fans events out to live connections via the Broadcaster type.
package chat

// Broadcaster delivers events to the subset of live connections that should
// see them. Delivery order across recipients is unspecified; within a single
// recipient's stream, events arrive in submission order because Conn.Send
// enqueues without blocking. Dead or saturated recipients are skipped; they
// are reaped through their own connection lifecycle, never by the broadcaster.
type Broadcaster struct {
	registry *Registry
	rooms    *Directory
}

// NewBroadcaster wires a broadcaster over the given registry and directory.
func NewBroadcaster(registry *Registry, rooms *Directory) *Broadcaster {
	return &Broadcaster{registry: registry, rooms: rooms}
}

// ToRoom delivers event to every room participant holding a live session.
// Participants without a live session are offline and silently skipped. The
// default room reaches every live session.
func (b *Broadcaster) ToRoom(roomID string, event Event) {
	b.toRoomExcept(roomID, "", event)
}

// ToRoomExcept is ToRoom minus the named user, used for typing relays where
// the sender must not hear its own status.
func (b *Broadcaster) ToRoomExcept(roomID, exceptUserID string, event Event) {
	b.toRoomExcept(roomID, exceptUserID, event)
}

func (b *Broadcaster) toRoomExcept(roomID, exceptUserID string, event Event) {
	if roomID == DefaultRoom || roomID == "" {
		for _, session := range b.registry.List() {
			if session.UserID == exceptUserID {
				continue
			}
			session.Conn.Send(event)
		}
		return
	}

	room, ok := b.rooms.Get(roomID)
	if !ok {
		return
	}
	for _, userID := range room.Participants {
		if userID == exceptUserID {
			continue
		}
		if session, live := b.registry.Lookup(userID); live {
			session.Conn.Send(event)
		}
	}
}

// ToAll delivers event to every live session regardless of room membership.
func (b *Broadcaster) ToAll(event Event) {
	for _, session := range b.registry.List() {
		session.Conn.Send(event)
	}
}

// ToAllExcept delivers event to every live session but the named user's.
func (b *Broadcaster) ToAllExcept(exceptUserID string, event Event) {
	for _, session := range b.registry.List() {
		if session.UserID == exceptUserID {
			continue
		}
		session.Conn.Send(event)
	}
}

// ToOne delivers event directly to one connection. Delivery to a connection
// that has since gone away fails silently; that race is expected under normal
// churn and must not surface to unrelated callers.
func (b *Broadcaster) ToOne(conn Conn, event Event) {
	if conn == nil {
		return
	}
	conn.Send(event)
}

// LiveParticipants resolves a room's participant ids against live sessions,
// in participant order.
func (b *Broadcaster) LiveParticipants(room Room) []User {
	users := make([]User, 0, len(room.Participants))
	for _, userID := range room.Participants {
		if session, live := b.registry.Lookup(userID); live {
			users = append(users, session.User())
		}
	}
	return users
}
