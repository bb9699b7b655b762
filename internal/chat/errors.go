// Package chat defines the error taxonomy for the coordination core. Every
// failure here is scoped to the offending connection or operation; nothing is
// fatal to the server process.
package chat

import "errors"

var (
	// ErrInvalidIdentity reports a handshake with a missing or empty user id
	// or user name. The connection must be refused.
	ErrInvalidIdentity = errors.New("invalid identity: userId and userName are required")

	// ErrDuplicateHandshake reports a connection attempting to register an
	// identity it already holds. The new attempt is rejected; the original
	// registration stands.
	ErrDuplicateHandshake = errors.New("duplicate handshake on an already registered connection")

	// ErrRoomNotFound reports an operation referencing an unknown room. The
	// operation is a no-op and safe to retry after creating the room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomAlreadyExists reports a create-room request carrying an id that
	// is already taken.
	ErrRoomAlreadyExists = errors.New("room already exists")
)
