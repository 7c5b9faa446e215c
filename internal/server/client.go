// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gochat-relay/internal/chat"
)

// Client is one WebSocket peer. It implements chat.Conn: the dispatcher
// queues frames through Send and the write pump drains them.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ chat.Conn = (*Client)(nil)

// NewClient creates a new Client instance with the provided WebSocket connection,
// hub reference, and client address. The client's send channel is buffered
// to handle message queuing.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	id := uuid.NewString()

	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBufferSize),
		hub:     hub,
		addr:    addr,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitInterval),
		logger:  hub.logger.With(slog.String("conn", id), slog.String("remote", addr)),
	}
}

// newRateLimiter allows burst frames per interval, refilled continuously.
func newRateLimiter(burst int, interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(burst)/interval.Seconds()), burst)
}

// ID returns the unique identifier of the connection.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Send queues frame for the write pump without blocking. A full buffer means
// the peer is not keeping up and is reported as an error so the dispatcher
// can drop it.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return chat.ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return chat.ErrSendBufferFull
	}
}

// Close stops accepting frames and lets the write pump send a close frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	pongWait := c.cfg.PingInterval + c.cfg.PongTimeout
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", slog.Any("error", err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", slog.Any("error", err))
		}
		return nil
	})
}

// handleReadError logs the reason a read failed. Every read error ends the
// read loop; gorilla connections cannot be read after an error.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", slog.Int("limit", c.cfg.MaxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info("client disconnected", slog.Any("reason", err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", slog.Any("reason", err))
	case websocket.IsUnexpectedCloseError(err):
		c.logger.Warn("unexpected websocket close", slog.Any("error", err))
	default:
		c.logger.Warn("websocket read error", slog.Any("error", err))
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.limiter.Allow() {
		return true
	}
	c.logger.Warn("rate limit exceeded; discarding frame",
		slog.Int("burst", c.cfg.RateLimitBurst),
		slog.Duration("interval", c.cfg.RateLimitInterval),
	)
	return false
}

// readPump is the per-connection task: it hands every text frame to the
// dispatcher in arrival order and runs departure handling exactly once when
// the connection ends for any reason.
func (c *Client) readPump() {
	defer func() {
		c.hub.dispatcher.Disconnect(c)
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection in readPump", slog.Any("error", err))
		}
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", slog.Int("type", messageType))
			continue
		}
		if !c.checkRateLimit() {
			continue
		}

		c.hub.dispatcher.HandleFrame(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection in writePump", slog.Any("error", err))
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.logger.Warn("error setting write deadline", slog.Any("error", err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing message", slog.Any("error", err))
		}
		// closing the socket ends the read pump, which runs departure handling
		c.Close()
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("error writing close message", slog.Any("error", err))
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.logger.Warn("error setting write deadline for ping", slog.Any("error", err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug("error writing ping", slog.Any("error", err))
		return false
	}
	return true
}
