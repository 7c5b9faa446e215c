// Package server coordinates client registration, pump lifecycle, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-relay/internal/chat"
)

// ErrHubClosed is returned by Serve once Shutdown has started.
var ErrHubClosed = errors.New("hub is shutting down")

// Hub binds accepted WebSocket connections to the chat dispatcher and owns
// the goroutines that pump frames for them.
type Hub struct {
	cfg        Config
	dispatcher *chat.Dispatcher
	origins    *originPolicy
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewHub creates a Hub with an empty registry, ready to serve connections.
func NewHub(cfg *Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		cfg:        *cfg,
		dispatcher: chat.NewDispatcher(chat.NewRegistry(), cfg.DispatcherOptions(), logger),
		origins:    newOriginPolicy(cfg.Origins(), logger),
		logger:     logger.With(slog.String("component", "hub")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.check,
	}
	return h
}

// Dispatcher returns the protocol dispatcher driven by this hub.
func (h *Hub) Dispatcher() *chat.Dispatcher {
	return h.dispatcher
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	return h.dispatcher.Registry().Len()
}

// Serve registers conn as an anonymous participant and starts its read and
// write pumps. The pumps run until the peer goes away or Shutdown is called.
func (h *Hub) Serve(conn *websocket.Conn, addr string) (*Client, error) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = conn.Close()
		return nil, ErrHubClosed
	}
	// registered under mu so Shutdown's snapshot cannot miss it
	client := NewClient(conn, h, addr)
	h.dispatcher.Connect(client)
	h.wg.Add(2)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	return client, nil
}

// Shutdown closes every live connection and waits for all pumps to exit.
// It returns context.DeadlineExceeded if they do not finish within timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	clients := h.dispatcher.Registry().Snapshot(nil)
	for _, c := range clients {
		c.Close()
	}
	h.logger.Info("closing client connections", slog.Int("clients", len(clients)))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
