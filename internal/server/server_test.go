// Package server_test exercises the transport shell end to end: real HTTP
// requests against the router and real WebSocket dials against the gateway.
package server_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kschost/chatrelay/internal/chat"
	"github.com/kschost/chatrelay/internal/server"
)

// frame mirrors the wire envelope for test-side decoding.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, mutate func(*server.Config)) (*httptest.Server, *server.Gateway) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}

	coordinator := chat.New(nil)
	gateway := server.NewGateway(coordinator, cfg)
	router := server.NewRouter(gateway, server.NewAPI(coordinator))

	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		_ = gateway.Shutdown(2 * time.Second)
	})
	return ts, gateway
}

func wsURL(ts *httptest.Server, query string) string {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	return url
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:3000")

	conn, resp, err := dialer.Dial(wsURL(ts, query), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrameOfType reads frames until one with the wanted type arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, eventType string) frame {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading for %q frame: %v", eventType, err)
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		if f.Type == eventType {
			return f
		}
	}
	t.Fatalf("no %q frame within deadline", eventType)
	return frame{}
}

func sendFrame(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	body := map[string]any{"type": eventType}
	if payload != nil {
		body["data"] = payload
	}
	if err := conn.WriteJSON(body); err != nil {
		t.Fatalf("writing %q frame: %v", eventType, err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}
	if body["status"] != "online" {
		t.Fatalf("expected online status, got %v", body["status"])
	}
}

func TestWebSocketRejectsNonGet(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/ws", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("POST /ws: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHandshakeDeliversPresenceAndWelcome(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dialWS(t, ts, "userId=u1&userName=Alice")

	online := readFrameOfType(t, conn, "onlineUsers")
	var users []chat.User
	if err := json.Unmarshal(online.Data, &users); err != nil {
		t.Fatalf("decoding onlineUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u1" || users[0].Name != "Alice" {
		t.Fatalf("unexpected presence list: %v", users)
	}

	welcome := readFrameOfType(t, conn, "message")
	var msg chat.Message
	if err := json.Unmarshal(welcome.Data, &msg); err != nil {
		t.Fatalf("decoding welcome: %v", err)
	}
	if msg.Type != chat.MessageTypeSystem || !strings.HasPrefix(msg.ID, "welcome-") {
		t.Fatalf("unexpected welcome notice: %+v", msg)
	}
}

func TestHandshakeWithoutIdentityIsRefused(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dialWS(t, ts, "")

	errFrame := readFrameOfType(t, conn, "error")
	var detail chat.ErrorDetail
	if err := json.Unmarshal(errFrame.Data, &detail); err != nil {
		t.Fatalf("decoding error detail: %v", err)
	}
	if detail.Message == "" {
		t.Fatal("expected a populated error detail")
	}

	// The server closes the connection after refusing the handshake.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestJoinAnnouncedToExistingUsers(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	alice := dialWS(t, ts, "userId=u1&userName=Alice")
	readFrameOfType(t, alice, "message") // welcome

	_ = dialWS(t, ts, "userId=u2&userName=Bob")

	joined := readFrameOfType(t, alice, "userJoined")
	var user chat.User
	if err := json.Unmarshal(joined.Data, &user); err != nil {
		t.Fatalf("decoding userJoined: %v", err)
	}
	if user.ID != "u2" || user.Name != "Bob" {
		t.Fatalf("unexpected joined user: %+v", user)
	}
}

func TestReconnectForceDisconnectsStaleConnection(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	stale := dialWS(t, ts, "userId=u1&userName=Alice")
	readFrameOfType(t, stale, "message") // welcome

	fresh := dialWS(t, ts, "userId=u1&userName=Alice")

	readFrameOfType(t, stale, "forceDisconnect")

	// The stale transport is closed shortly after the notice.
	_ = stale.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := stale.ReadMessage(); err != nil {
			break
		}
	}

	// The fresh connection is fully active.
	online := readFrameOfType(t, fresh, "onlineUsers")
	var users []chat.User
	if err := json.Unmarshal(online.Data, &users); err != nil {
		t.Fatalf("decoding onlineUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("expected exactly one Alice online, got %v", users)
	}
}

func TestGlobalMessageFanout(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	alice := dialWS(t, ts, "userId=u1&userName=Alice")
	bob := dialWS(t, ts, "userId=u2&userName=Bob")
	readFrameOfType(t, bob, "message") // welcome

	sendFrame(t, alice, "sendMessage", map[string]any{"text": "hello everyone"})

	received := readFrameOfType(t, bob, "message")
	var msg chat.Message
	if err := json.Unmarshal(received.Data, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if msg.Text != "hello everyone" || msg.Sender.ID != "u1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestRoomLifecycleOverWebSocketAndREST(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	alice := dialWS(t, ts, "userId=u1&userName=Alice")

	sendFrame(t, alice, "createRoom", map[string]any{"name": "team"})
	created := readFrameOfType(t, alice, "roomCreated")
	var room chat.Room
	if err := json.Unmarshal(created.Data, &room); err != nil {
		t.Fatalf("decoding roomCreated: %v", err)
	}
	if room.ID == "" || room.Name != "team" {
		t.Fatalf("unexpected created room: %+v", room)
	}

	sendFrame(t, alice, "sendRoomMessage", map[string]any{"roomId": room.ID, "text": "hi"})
	readFrameOfType(t, alice, "roomMessage")

	resp, err := http.Get(ts.URL + "/api/messages/" + room.ID)
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		RoomID   string         `json:"roomId"`
		Messages []chat.Message `json:"messages"`
		Count    int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding messages body: %v", err)
	}
	if body.RoomID != room.ID || body.Count != 1 || body.Messages[0].Text != "hi" {
		t.Fatalf("unexpected REST history: %+v", body)
	}

	roomsResp, err := http.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET rooms: %v", err)
	}
	defer func() { _ = roomsResp.Body.Close() }()
	var roomsBody struct {
		ChatRooms []chat.Room `json:"chatRooms"`
		Count     int         `json:"count"`
	}
	if err := json.NewDecoder(roomsResp.Body).Decode(&roomsBody); err != nil {
		t.Fatalf("decoding rooms body: %v", err)
	}
	if roomsBody.Count != 1 || roomsBody.ChatRooms[0].ID != room.ID {
		t.Fatalf("unexpected REST room list: %+v", roomsBody)
	}
}

func TestOnlineUsersEndpointReflectsConnections(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dialWS(t, ts, "userId=u1&userName=Alice")
	readFrameOfType(t, conn, "message") // welcome, handshake settled

	resp, err := http.Get(ts.URL + "/api/users")
	if err != nil {
		t.Fatalf("GET users: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		OnlineUsers []chat.User `json:"onlineUsers"`
		Count       int         `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding users body: %v", err)
	}
	if body.Count != 1 || body.OnlineUsers[0].ID != "u1" {
		t.Fatalf("unexpected REST user list: %+v", body)
	}
}

func TestOversizedMessageClosesConnection(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 64
	})
	conn := dialWS(t, ts, "userId=u1&userName=Alice")
	readFrameOfType(t, conn, "message") // welcome, handshake settled

	oversized := strings.Repeat("x", 256)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(oversized)); err != nil {
		t.Fatalf("writing oversized frame: %v", err)
	}

	// The server abandons the connection once the read limit is exceeded, so
	// reads on this side must fail within the deadline.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if isTimeout(err) {
				t.Fatal("connection stayed open after an oversized frame")
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func TestDisallowedOriginIsRefused(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"http://trusted.example.com"}
	})

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://evil.example.com")

	conn, resp, err := dialer.Dial(wsURL(ts, "userId=u1&userName=Alice"), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected the handshake to be refused for a disallowed origin")
	}
}
