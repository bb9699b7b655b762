// Package chat_test contains tests for the coordination core, exercised
// through in-process fake connections so no network transport is required.
package chat_test

import (
	"sync"
	"testing"

	"github.com/kschost/chatrelay/internal/chat"
)

// fakeConn records every event delivered to it, standing in for a live
// WebSocket connection.
type fakeConn struct {
	mu     sync.Mutex
	events []chat.Event
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (c *fakeConn) Send(event chat.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// eventsOfType returns all recorded events with the given type, in delivery
// order.
func (c *fakeConn) eventsOfType(eventType string) []chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []chat.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (c *fakeConn) countOfType(eventType string) int {
	return len(c.eventsOfType(eventType))
}

// lastOfType returns the most recent event with the given type and fails the
// test when none was delivered.
func (c *fakeConn) lastOfType(t *testing.T, eventType string) chat.Event {
	t.Helper()
	events := c.eventsOfType(eventType)
	if len(events) == 0 {
		t.Fatalf("no %q event delivered", eventType)
	}
	return events[len(events)-1]
}
