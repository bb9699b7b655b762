// Package server wires the WebSocket gateway and REST handlers into a chi
// router for the chat relay application.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter configures and returns the application router: the status and
// query endpoints plus the WebSocket entry point.
func NewRouter(gateway *Gateway, api *API) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", api.Status)
	r.Get("/status", api.Status)
	r.Get("/ws", gateway.HandleWebSocket)

	r.Route("/api", func(rt chi.Router) {
		rt.Get("/users", api.Users)
		rt.Get("/rooms", api.Rooms)
		rt.Get("/messages/{roomID}", api.Messages)
	})

	return r
}
