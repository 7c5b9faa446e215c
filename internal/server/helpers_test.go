package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-relay/internal/chat"
)

const testOrigin = "http://localhost:8765"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer runs a hub behind httptest and returns it with the
// server's WebSocket URL. mutate may adjust the default config first.
func startTestServer(t *testing.T, mutate func(*Config)) (*Hub, *httptest.Server, string) {
	t.Helper()

	cfg := NewConfig()
	cfg.PingInterval = time.Second
	cfg.PongTimeout = time.Second
	cfg.WriteTimeout = time.Second
	if mutate != nil {
		mutate(cfg)
	}

	hub := NewHub(cfg, discardLogger())
	testServer := httptest.NewServer(NewRouter(hub))
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		testServer.Close()
	})

	return hub, testServer, buildWebSocketURL(testServer.URL)
}

func buildWebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// dial opens a WebSocket connection with a browser-like Origin header.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()

	conn, err := dialWithOrigin(wsURL, testOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialWithOrigin(wsURL, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func sendJSON(t *testing.T, conn *websocket.Conn, payload map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(payload))
}

func sendJoin(t *testing.T, conn *websocket.Conn, name string) {
	sendJSON(t, conn, map[string]any{"type": chat.TypeJoin, "username": name})
}

func sendChat(t *testing.T, conn *websocket.Conn, text string) {
	sendJSON(t, conn, map[string]any{"type": chat.TypeMessage, "message": text})
}

// readNotice reads the next frame and decodes it as a notice.
func readNotice(t *testing.T, conn *websocket.Conn) chat.Notice {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var n chat.Notice
	require.NoError(t, json.Unmarshal(raw, &n), string(raw))
	return n
}

// expectNotice reads one notice and checks its kind and username.
func expectNotice(t *testing.T, conn *websocket.Conn, typ, username string) chat.Notice {
	t.Helper()
	n := readNotice(t, conn)
	require.Equal(t, typ, n.Type, "notice %+v", n)
	require.Equal(t, username, n.Username, "notice %+v", n)
	return n
}

// expectNoMessage fails if any frame arrives within timeout.
func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no message, got %s", raw)
	}
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout(), "expected read timeout, got %v", err)
}

// joinAs dials and completes a join, consuming the welcome notice.
func joinAs(t *testing.T, wsURL, name string) *websocket.Conn {
	t.Helper()
	conn := dial(t, wsURL)
	sendJoin(t, conn, name)
	expectNotice(t, conn, chat.TypeWelcome, name)
	return conn
}
