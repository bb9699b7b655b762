// Package store provides the remote room-store collaborator used for
// best-effort durability of created rooms.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kschost/chatrelay/internal/chat"
)

const defaultTimeout = 5 * time.Second

// HTTPRoomStore posts created rooms to an external admin service. Every call
// carries a bounded timeout so a slow collaborator can never stall the
// caller; failures are the caller's to report, never to retry here.
type HTTPRoomStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRoomStore builds a store targeting baseURL. A non-positive timeout
// falls back to a sane default.
func NewHTTPRoomStore(baseURL string, timeout time.Duration) *HTTPRoomStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPRoomStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SaveRoom posts the room as JSON and treats any non-2xx status as failure.
func (s *HTTPRoomStore) SaveRoom(ctx context.Context, room chat.Room) error {
	body, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/adminchat/roomcreate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build room save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("save room %s: unexpected status %d", room.ID, resp.StatusCode)
	}
	return nil
}
