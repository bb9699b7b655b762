// Package server exposes the read-only HTTP query surface mirroring the
// in-band query events: server status, online users, rooms, and room
// histories.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kschost/chatrelay/internal/chat"
)

// API serves the REST endpoints backed by coordinator snapshots. All
// endpoints are side-effect-free.
type API struct {
	coordinator *chat.Coordinator
}

// NewAPI builds the REST handler set over the coordinator.
func NewAPI(coordinator *chat.Coordinator) *API {
	return &API{coordinator: coordinator}
}

// Status reports a liveness summary.
func (a *API) Status(w http.ResponseWriter, _ *http.Request) {
	stats := a.coordinator.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "online",
		"onlineUsers": stats.OnlineUsers,
		"chatRooms":   stats.Rooms,
		"uptime":      stats.Uptime.Seconds(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Users lists the currently online users.
func (a *API) Users(w http.ResponseWriter, _ *http.Request) {
	users := a.coordinator.Users()
	writeJSON(w, http.StatusOK, map[string]any{
		"onlineUsers": users,
		"count":       len(users),
	})
}

// Rooms lists all rooms in creation order.
func (a *API) Rooms(w http.ResponseWriter, _ *http.Request) {
	rooms := a.coordinator.Rooms()
	writeJSON(w, http.StatusOK, map[string]any{
		"chatRooms": rooms,
		"count":     len(rooms),
	})
}

// Messages returns a room's full history in append order.
func (a *API) Messages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	messages := a.coordinator.Messages(roomID)
	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":   roomID,
		"messages": messages,
		"count":    len(messages),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error writing JSON response: %v", err)
	}
}
