// Package chat orchestrates the connection lifecycle and every room and
// message operation through the Coordinator type.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// RoomStore is an optional durable collaborator notified of created rooms.
// Persistence is best-effort: a failing store never rolls back in-memory
// state, which stays authoritative for live behavior.
type RoomStore interface {
	SaveRoom(ctx context.Context, room Room) error
}

// Coordinator is the sole mutator of the registry, room directory, and
// message log. Every mutating operation runs under one mutex, so cross-
// component sequences such as "deliver history, then mark joined" are atomic
// with respect to concurrent appends. Fan-out never blocks inside the
// critical section because Conn.Send only enqueues.
type Coordinator struct {
	mu        sync.Mutex
	registry  *Registry
	rooms     *Directory
	log       *Log
	broadcast *Broadcaster
	store     RoomStore
	startedAt time.Time
}

// New assembles a coordinator with fresh component state. store may be nil
// when no durable collaborator is configured.
func New(store RoomStore) *Coordinator {
	registry := NewRegistry()
	rooms := NewDirectory()
	return &Coordinator{
		registry:  registry,
		rooms:     rooms,
		log:       NewLog(),
		broadcast: NewBroadcaster(registry, rooms),
		store:     store,
		startedAt: utcNow(),
	}
}

// Connect registers identity on conn and completes the connection's
// transition to active: any stale session for the same identity is told to
// disconnect first, the default room is auto-joined, presence is broadcast,
// and a welcome notice is delivered. A reconnect does not re-announce a join.
func (c *Coordinator) Connect(identity UserIdentity, conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, evicted, err := c.registry.Register(identity, conn)
	if err != nil {
		return err
	}

	// The evicted connection must be told to go away before the new session
	// finishes activating, so no two connections ever both believe they are
	// the canonical session.
	reconnect := evicted != nil
	if reconnect {
		log.Printf("duplicate connection for %s (%s): evicting stale session", session.UserName, session.UserID)
		c.broadcast.ToOne(evicted.Conn, forceDisconnectEvent("signed in from another connection"))
		evicted.Conn.Close()
	}

	c.broadcast.ToAll(onlineUsersEvent(c.registry.Users()))
	if !reconnect {
		c.broadcast.ToAllExcept(session.UserID, Event{Type: EventUserJoined, Data: session.User()})
		log.Printf("user connected: %s (%s), %d online", session.UserName, session.UserID, c.registry.Len())
	} else {
		log.Printf("user reconnected: %s (%s), %d online", session.UserName, session.UserID, c.registry.Len())
	}

	welcome := Message{
		ID:        fmt.Sprintf("welcome-%d", utcNow().UnixMilli()),
		RoomID:    DefaultRoom,
		Text:      fmt.Sprintf("Welcome to the chat, %s!", session.UserName),
		Type:      MessageTypeSystem,
		Timestamp: utcNow(),
	}
	c.broadcast.ToOne(conn, Event{Type: EventMessage, Data: welcome})

	return nil
}

// Disconnect tears down whatever session conn holds and broadcasts the
// departure. It is idempotent: a connection already unregistered (for
// example by eviction) is a no-op. Room membership records are left
// untouched; disconnecting is not leaving a room.
func (c *Coordinator) Disconnect(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := c.registry.Unregister(conn)
	if session == nil {
		return
	}

	log.Printf("user disconnected: %s (%s), %d online", session.UserName, session.UserID, c.registry.Len())
	c.broadcast.ToAll(Event{Type: EventUserLeft, Data: session.User()})
	c.broadcast.ToAll(onlineUsersEvent(c.registry.Users()))
}

// Dispatch decodes one inbound frame from conn, validates its payload, and
// applies it. Failures are reported to the requesting connection only; the
// returned error exists for transport-side logging.
func (c *Coordinator) Dispatch(conn Conn, raw []byte) error {
	var frame envelope
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.broadcast.ToOne(conn, errorEvent("malformed event"))
		return fmt.Errorf("decode event: %w", err)
	}

	session, ok := c.registry.SessionFor(conn)
	if !ok {
		c.broadcast.ToOne(conn, errorEvent("connection is not registered"))
		return fmt.Errorf("dispatch %q: no session for connection", frame.Type)
	}

	switch frame.Type {
	case EventSendMessage:
		var p SendMessagePayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.sendMessage(session, p)
	case EventCreateRoom:
		var p CreateRoomPayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.createRoom(session, p)
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.joinRoom(session, p)
	case EventSendRoomMessage:
		var p RoomMessagePayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.sendRoomMessage(session, p)
	case EventGetRoomMessages:
		var p RoomRefPayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.broadcast.ToOne(conn, roomMessagesEvent(c.log.List(p.RoomID)))
	case EventLeaveRoom:
		var p LeaveRoomPayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.leaveRoom(session, p)
	case EventTyping:
		var p TypingPayload
		if err := decodePayload(frame, &p); err != nil {
			return c.reject(conn, frame.Type, err)
		}
		c.relayTyping(session, p)
	case EventGetOnlineUsers:
		c.broadcast.ToOne(conn, onlineUsersEvent(c.registry.Users()))
	case EventGetRoomList:
		c.broadcast.ToOne(conn, roomListEvent(c.rooms.List()))
	case EventUserLeave:
		c.Disconnect(conn)
		conn.Close()
	default:
		c.broadcast.ToOne(conn, errorEvent(fmt.Sprintf("unknown event type %q", frame.Type)))
		return fmt.Errorf("dispatch: unknown event type %q", frame.Type)
	}

	return nil
}

func decodePayload(frame envelope, dst any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s: missing payload", frame.Type)
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", frame.Type, err)
	}
	return nil
}

func (c *Coordinator) reject(conn Conn, eventType string, err error) error {
	c.broadcast.ToOne(conn, errorEvent(err.Error()))
	return fmt.Errorf("dispatch %q: %w", eventType, err)
}

// sendMessage appends to the default room's history and fans out to every
// live session, preserving the legacy flat-chat behavior.
func (c *Coordinator) sendMessage(session *Session, p SendMessagePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.log.Append(DefaultRoom, Message{
		ID:     p.ID,
		Sender: Sender{ID: session.UserID, Name: session.UserName},
		Text:   p.Text,
		Type:   MessageTypeUser,
	})
	c.broadcast.ToAll(Event{Type: EventMessage, Data: stored})
}

func (c *Coordinator) createRoom(session *Session, p CreateRoomPayload) {
	if p.Name == "" {
		c.broadcast.ToOne(session.Conn, errorEvent("room name is required"))
		return
	}

	c.mu.Lock()
	room, err := c.rooms.Create(p.Name, p.Kind, session.UserID, p.ID, utcNow())
	if err != nil {
		c.mu.Unlock()
		c.broadcast.ToOne(session.Conn, errorEvent(err.Error()))
		return
	}

	log.Printf("room created: %q (%s) by %s", room.Name, room.ID, session.UserID)
	c.broadcast.ToAll(roomListEvent(c.rooms.List()))
	c.broadcast.ToOne(session.Conn, Event{Type: EventRoomCreated, Data: room})
	c.mu.Unlock()

	if c.store != nil {
		go c.persistRoom(room, session.Conn)
	}
}

// persistRoom hands the room to the durable collaborator outside the
// critical section. Failure is reported to the creating client only.
func (c *Coordinator) persistRoom(room Room, conn Conn) {
	if err := c.store.SaveRoom(context.Background(), room); err != nil {
		log.Printf("room store save failed for %s: %v", room.ID, err)
		c.broadcast.ToOne(conn, errorEvent("room was created but could not be persisted"))
	}
}

// joinRoom adds the user, replays the room's full history to the joining
// connection, then announces the updated roster and a join notice. The whole
// sequence runs inside the critical section so a concurrent append can
// neither drop from nor duplicate into the replayed history.
func (c *Coordinator) joinRoom(session *Session, p JoinRoomPayload) {
	displayName := p.User.Name
	if displayName == "" {
		displayName = session.UserName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, err := c.rooms.Join(p.RoomID, session.UserID)
	if err != nil {
		c.broadcast.ToOne(session.Conn, errorEvent(err.Error()))
		return
	}
	log.Printf("user %s joined room %s", session.UserID, room.ID)

	c.broadcast.ToOne(session.Conn, roomMessagesEvent(c.log.List(room.ID)))
	c.broadcast.ToRoom(room.ID, roomParticipantsEvent(c.broadcast.LiveParticipants(room)))

	notice := c.log.Append(room.ID, Message{
		Text: fmt.Sprintf("%s joined the room.", displayName),
		Type: MessageTypeSystem,
	})
	c.broadcast.ToRoom(room.ID, Event{Type: EventRoomMessage, Data: notice})
}

func (c *Coordinator) sendRoomMessage(session *Session, p RoomMessagePayload) {
	if p.RoomID == "" {
		c.broadcast.ToOne(session.Conn, errorEvent("roomId is required"))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.log.Append(p.RoomID, Message{
		ID:     p.ID,
		Sender: Sender{ID: session.UserID, Name: session.UserName},
		Text:   p.Text,
		Type:   MessageTypeUser,
	})
	c.rooms.Touch(p.RoomID, stored.Text, stored.Timestamp)
	c.broadcast.ToRoom(p.RoomID, Event{Type: EventRoomMessage, Data: stored})
}

// leaveRoom removes the user from the roster, then announces a leave notice
// and the updated roster to the remaining members.
func (c *Coordinator) leaveRoom(session *Session, p LeaveRoomPayload) {
	displayName := p.User.Name
	if displayName == "" {
		displayName = session.UserName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, err := c.rooms.Leave(p.RoomID, session.UserID)
	if err != nil {
		c.broadcast.ToOne(session.Conn, errorEvent(err.Error()))
		return
	}
	log.Printf("user %s left room %s", session.UserID, room.ID)

	notice := c.log.Append(room.ID, Message{
		Text: fmt.Sprintf("%s left the room.", displayName),
		Type: MessageTypeSystem,
	})
	c.broadcast.ToRoom(room.ID, Event{Type: EventRoomMessage, Data: notice})
	c.broadcast.ToRoom(room.ID, roomParticipantsEvent(c.broadcast.LiveParticipants(room)))
}

// relayTyping forwards a typing-status change to the room, excluding the
// sender. Typing events are never persisted.
func (c *Coordinator) relayTyping(session *Session, p TypingPayload) {
	roomID := p.RoomID
	if roomID == "" {
		roomID = DefaultRoom
	}
	notice := TypingNotice{
		UserID:   session.UserID,
		UserName: session.UserName,
		IsTyping: p.IsTyping,
	}
	c.broadcast.ToRoomExcept(roomID, session.UserID, Event{Type: EventUserTyping, Data: notice})
}

// Users snapshots the current presence list for the query surface.
func (c *Coordinator) Users() []User {
	return c.registry.Users()
}

// Rooms snapshots the room list for the query surface.
func (c *Coordinator) Rooms() []Room {
	return c.rooms.List()
}

// Messages returns a room's full history for the query surface.
func (c *Coordinator) Messages(roomID string) []Message {
	return c.log.List(roomID)
}

// Stats summarizes the server's live state.
func (c *Coordinator) Stats() Stats {
	return Stats{
		OnlineUsers: c.registry.Len(),
		Rooms:       c.rooms.Len(),
		Uptime:      utcNow().Sub(c.startedAt),
	}
}

// Stats is a point-in-time summary of live server state.
type Stats struct {
	OnlineUsers int
	Rooms       int
	Uptime      time.Duration
}

// Shutdown closes every live connection. Pending outbound queues are flushed
// by each connection's own writer before the transport drops.
func (c *Coordinator) Shutdown() {
	sessions := c.registry.List()
	log.Printf("closing %d live connections", len(sessions))
	for _, session := range sessions {
		session.Conn.Close()
	}
}
