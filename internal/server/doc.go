// Package server implements the transport shell of the chat relay: WebSocket
// upgrades, per-connection read/write pumps with rate limiting and bounded
// outbound queues, origin access control, the REST query surface, and HTTP
// server lifecycle.
//
// The implementation is organized into specialized files for configuration,
// the gateway, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows. All chat semantics live in
// the chat package; this package only moves bytes.
package server
