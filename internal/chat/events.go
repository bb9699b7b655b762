// Package chat defines the wire events exchanged with clients. Every frame is
// a JSON envelope {"type": ..., "data": ...} with one fixed payload schema
// per type, validated at the boundary before it reaches the coordinator.
package chat

import "encoding/json"

// Inbound event types.
const (
	EventSendMessage     = "sendMessage"
	EventCreateRoom      = "createRoom"
	EventJoinRoom        = "joinRoom"
	EventSendRoomMessage = "sendRoomMessage"
	EventGetRoomMessages = "getRoomMessages"
	EventLeaveRoom       = "leaveRoom"
	EventTyping          = "typing"
	EventGetOnlineUsers  = "getOnlineUsers"
	EventGetRoomList     = "getRoomList"
	EventUserLeave       = "userLeave"
)

// Outbound event types.
const (
	EventOnlineUsers      = "onlineUsers"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventMessage          = "message"
	EventRoomList         = "roomList"
	EventRoomCreated      = "roomCreated"
	EventRoomMessages     = "roomMessages"
	EventRoomMessage      = "roomMessage"
	EventRoomParticipants = "roomParticipants"
	EventUserTyping       = "userTyping"
	EventForceDisconnect  = "forceDisconnect"
	EventError            = "error"
)

// Event is one outbound server-to-client frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// envelope is the inbound framing before the payload is decoded.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload carries a message for the default room.
type SendMessagePayload struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// CreateRoomPayload carries a create-room request. ID is optional; Kind
// defaults to group.
type CreateRoomPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Kind string `json:"type,omitempty"`
}

// JoinRoomPayload carries a join-room request. User is the display identity
// announced to the room; the session identity fills any blanks.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	User   Sender `json:"user"`
}

// LeaveRoomPayload carries a leave-room request.
type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
	User   Sender `json:"user"`
}

// RoomMessagePayload carries a message for a specific room.
type RoomMessagePayload struct {
	ID     string `json:"id,omitempty"`
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// RoomRefPayload references a room by id, used by history queries.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

// TypingPayload carries a typing-status change. RoomID is empty for the
// default room.
type TypingPayload struct {
	RoomID   string `json:"roomId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// TypingNotice is the relayed form of a typing-status change.
type TypingNotice struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorDetail is the payload of an error event.
type ErrorDetail struct {
	Message string `json:"message"`
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Data: ErrorDetail{Message: message}}
}

func forceDisconnectEvent(reason string) Event {
	return Event{Type: EventForceDisconnect, Data: reason}
}

func onlineUsersEvent(users []User) Event {
	return Event{Type: EventOnlineUsers, Data: users}
}

func roomListEvent(rooms []Room) Event {
	return Event{Type: EventRoomList, Data: rooms}
}

func roomMessagesEvent(messages []Message) Event {
	return Event{Type: EventRoomMessages, Data: messages}
}

func roomParticipantsEvent(participants []User) Event {
	return Event{Type: EventRoomParticipants, Data: participants}
}
