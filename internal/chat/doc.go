// Package chat implements the coordination core of the chat relay: session
// registration and eviction, room membership, per-room message history, and
// event fan-out to live connections.
//
// The package is transport-agnostic. Connections reach it only through the
// Conn interface, so the coordination logic can be exercised in tests without
// a network. The Coordinator is the sole mutator of the registry, room
// directory, and message log; the transport layer hands it raw inbound frames
// and receives typed outbound events in return.
package chat
