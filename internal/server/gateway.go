// Package server exposes the WebSocket gateway that upgrades connections and
// binds them to the coordination core.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kschost/chatrelay/internal/chat"
)

// Gateway accepts WebSocket upgrades, runs the identity handshake, and starts
// the per-connection pumps. It tracks pump goroutines so shutdown can wait
// for them to drain.
type Gateway struct {
	coordinator *chat.Coordinator
	cfg         *Config
	upgrader    websocket.Upgrader
	wg          sync.WaitGroup
}

// NewGateway builds a gateway over the coordinator using cfg's origin policy
// and buffer sizes.
func NewGateway(coordinator *chat.Coordinator, cfg *Config) *Gateway {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return &Gateway{
		coordinator: coordinator,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// HandleWebSocket upgrades the request and registers the connection with the
// coordinator. Identity travels as handshake query parameters (userId,
// userName), not as a post-connect message; a connection without a valid
// identity gets an error event and is closed immediately.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	identity := chat.UserIdentity{
		UserID:   r.URL.Query().Get("userId"),
		UserName: r.URL.Query().Get("userName"),
	}

	client := NewClient(conn, g.coordinator, r.RemoteAddr, g.cfg)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		client.writePump()
	}()

	if err := g.coordinator.Connect(identity, client); err != nil {
		log.Printf("handshake refused for %s: %v", r.RemoteAddr, err)
		client.Send(chat.Event{Type: chat.EventError, Data: chat.ErrorDetail{Message: err.Error()}})
		client.Close()
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		client.readPump()
	}()
}

// Shutdown closes every live connection through the coordinator and waits for
// the pump goroutines to finish, or until the timeout is reached.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.coordinator.Shutdown()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("gateway shutdown timeout reached, some connections may still be draining")
		return context.DeadlineExceeded
	}
}
