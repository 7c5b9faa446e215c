package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 8, 12, 30, 0, 0, time.UTC)

// fakeConn records every frame it is sent. Setting fail makes Send return
// ErrConnClosed, which simulates a peer that vanished mid-broadcast.
type fakeConn struct {
	id string

	mu     sync.Mutex
	raw    [][]byte
	fail   bool
	closed int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed > 0 {
		return ErrConnClosed
	}
	f.raw = append(f.raw, append([]byte(nil), frame...))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeConn) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.raw...)
}

func (f *fakeConn) notices(t *testing.T) []Notice {
	t.Helper()
	var out []Notice
	for _, frame := range f.frames() {
		var n Notice
		require.NoError(t, json.Unmarshal(frame, &n))
		out = append(out, n)
	}
	return out
}

// types returns the notice kinds received so far, in order.
func (f *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, n := range f.notices(t) {
		out = append(out, n.Type+"("+n.Username+")")
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(opts Options) *Dispatcher {
	opts.Clock = func() time.Time { return fixedNow }
	return NewDispatcher(NewRegistry(), opts, discardLogger())
}

func frame(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func joinFrame(t *testing.T, name string) []byte {
	return frame(t, map[string]any{"type": TypeJoin, "username": name})
}

func messageFrame(t *testing.T, text string) []byte {
	return frame(t, map[string]any{"type": TypeMessage, "message": text})
}

func typingFrame(t *testing.T) []byte {
	return frame(t, map[string]any{"type": TypeTyping})
}

// connectAll registers n anonymous fake connections named c0..cN-1.
func connectAll(d *Dispatcher, n int) []*fakeConn {
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
		d.Connect(conns[i])
	}
	return conns
}
