// Package server wires HTTP handlers into a chi router for the chat relay.
package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter configures and returns a router with all application routes:
// the browser client, the health check and the WebSocket endpoint.
func NewRouter(h *Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", IndexHandler)
	r.Get("/health", HealthHandler(h))
	r.Get("/ws", h.WebSocketHandler)
	return r
}
