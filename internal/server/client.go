// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kschost/chatrelay/internal/chat"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 54 * time.Second
)

// Client is one live WebSocket connection. It implements chat.Conn: the
// coordinator enqueues outbound events through Send and tears the transport
// down through Close. The write pump is the only goroutine that touches the
// underlying connection for writes.
type Client struct {
	conn           *websocket.Conn
	coordinator    *chat.Coordinator
	send           chan []byte
	done           chan struct{}
	closeOnce      sync.Once
	addr           string
	maxMessageSize int64
	limiter        *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient wraps conn for the given coordinator. The send channel is the
// bounded outbound queue; when it overflows the connection is considered too
// slow to keep and is disconnected.
func NewClient(conn *websocket.Conn, coordinator *chat.Coordinator, addr string, cfg *Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		conn:           conn,
		coordinator:    coordinator,
		send:           make(chan []byte, cfg.SendBufferSize),
		done:           make(chan struct{}),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// Send queues an event for delivery. It never blocks: a full queue means the
// recipient has stopped draining, so the connection is dropped rather than
// stalling the broadcaster for everyone else.
func (c *Client) Send(event chat.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("error encoding %q event for %s: %v", event.Type, c.addr, err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		log.Printf("send buffer full for %s; disconnecting", c.addr)
		c.Close()
		return false
	}
}

// Close shuts the connection down. Safe to call multiple times and from any
// goroutine; the write pump flushes queued events before the transport drops.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		log.Printf("error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			log.Printf("error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError classifies a read failure and reports whether the read loop
// should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("client %s connection closed: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		log.Printf("rate limit exceeded for %s (%d messages per %s); discarding event", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// readPump drains inbound frames sequentially and hands each one to the
// coordinator. Each event is handled to completion before the next is read,
// so one connection can never interleave its own operations.
func (c *Client) readPump() {
	defer func() {
		c.coordinator.Disconnect(c)
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		if err := c.coordinator.Dispatch(c, raw); err != nil {
			log.Printf("event from %s rejected: %v", c.addr, err)
		}
	}
}

// writePump serializes all writes to the connection: queued events, keepalive
// pings, and the final drain on shutdown.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeMessage(message) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		case <-c.done:
			c.drainAndClose()
			return
		}
	}
}

// drainAndClose flushes whatever is still queued, then sends a close frame.
// This gives notices like forceDisconnect a chance to reach the client before
// the transport drops.
func (c *Client) drainAndClose() {
	for {
		select {
		case message := <-c.send:
			if !c.writeMessage(message) {
				return
			}
		default:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err == nil {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					log.Printf("error writing close message to %s: %v", c.addr, err)
				}
			}
			return
		}
	}
}

func (c *Client) writeMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		log.Printf("error setting write deadline for %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("error writing message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		log.Printf("error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
