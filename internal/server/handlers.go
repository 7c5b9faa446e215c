// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the embedded browser client.
package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

//go:embed static/index.html
var indexPage []byte

// WebSocketHandler upgrades the request and hands the connection to the hub,
// which launches the read/write pumps.
func (h *Hub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error response
		h.logger.Warn("websocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("error", err))
		return
	}

	if _, err := h.Serve(conn, r.RemoteAddr); err != nil {
		if errors.Is(err, ErrHubClosed) {
			h.logger.Info("rejected connection during shutdown", slog.String("remote", r.RemoteAddr))
			return
		}
		h.logger.Error("cannot serve connection", slog.Any("error", err))
	}
}

// HealthStatus is the JSON body returned by the health endpoint.
type HealthStatus struct {
	Status      string   `json:"status"`
	Connections int      `json:"connections"`
	Users       []string `json:"users"`
	Typing      []string `json:"typing"`
}

// HealthHandler reports liveness together with who is currently online and
// who typed within the typing window.
func HealthHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		d := h.Dispatcher()
		status := HealthStatus{
			Status:      "ok",
			Connections: h.ClientCount(),
			Users:       nonNil(d.Registry().Names()),
			Typing:      nonNil(d.Typing()),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			h.logger.Warn("error writing health response", slog.Any("error", err))
		}
	}
}

// IndexHandler serves the browser chat client.
func IndexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexPage); err != nil {
		slog.Warn("error writing HTML response", slog.Any("error", err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
