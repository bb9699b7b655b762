package server

import (
	"testing"

	"github.com/kschost/chatrelay/internal/chat"
)

// A client whose queue overflows is disconnected rather than stalling the
// broadcaster. No pumps run here, so nothing drains the queue.
func TestSendOverflowDisconnectsClient(t *testing.T) {
	cfg := NewConfig()
	cfg.SendBufferSize = 1
	client := NewClient(nil, nil, "test-client", cfg)

	if !client.Send(chat.Event{Type: chat.EventMessage, Data: "first"}) {
		t.Fatal("first send should fit in the queue")
	}
	if client.Send(chat.Event{Type: chat.EventMessage, Data: "second"}) {
		t.Fatal("send into a full queue should be rejected")
	}

	select {
	case <-client.done:
	default:
		t.Fatal("overflowing the queue should close the client")
	}

	if client.Send(chat.Event{Type: chat.EventMessage, Data: "third"}) {
		t.Fatal("send on a closed client should be rejected")
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := NewClient(nil, nil, "test-client", NewConfig())

	client.Close()
	client.Close()

	select {
	case <-client.done:
	default:
		t.Fatal("Close should leave the client shut down")
	}
}
