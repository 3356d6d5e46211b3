package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records writes; reads block until Close.
type fakeConn struct {
	mu     sync.Mutex
	types  []int
	frames [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn { return &fakeConn{closed: make(chan struct{})} }

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(t int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, t)
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) text() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for i, t := range c.types {
		if t == websocket.TextMessage {
			out = append(out, string(c.frames[i]))
		}
	}
	return out
}

func (c *fakeConn) sawClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.types {
		if t == websocket.CloseMessage {
			return true
		}
	}
	return false
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(cancel)
	return cancel
}

func connect(t *testing.T, h *Hub) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	c, ok := NewClient(h, conn)
	require.True(t, ok)
	go c.Run()
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	h := New("gaze")
	startHub(t, h)

	a, b := connect(t, h), connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastEvent("gaze", map[string]int{"x": 10, "y": 20}))

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.text()) == 1 }, time.Second, time.Millisecond)
		var env struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(conn.text()[0]), &env))
		assert.Equal(t, "gaze", env.Type)
		assert.Equal(t, map[string]int{"x": 10, "y": 20}, env.Data)
	}
}

func TestHub_RetainReplaysLatest(t *testing.T) {
	h := NewRetaining("calibration")
	startHub(t, h)

	require.NoError(t, h.BroadcastEvent("state", "waiting"))
	require.NoError(t, h.BroadcastEvent("state", "collecting"))
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.last != nil && string(h.last.Data) == `{"type":"state","data":"collecting"}`
	}, time.Second, time.Millisecond)

	late := connect(t, h)
	require.Eventually(t, func() bool { return len(late.text()) == 1 }, time.Second, time.Millisecond)
	assert.JSONEq(t, `{"type":"state","data":"collecting"}`, late.text()[0])
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := New("gaze")
	startHub(t, h)

	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("gaze")
	cancel := startHub(t, h)

	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)
	require.Eventually(t, conn.sawClose, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.ClientCount())

	_, ok := NewClient(h, newFakeConn())
	assert.False(t, ok, "a stopped hub should refuse clients")
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	h := New("idle") // never run
	for i := 0; i < 300; i++ {
		h.Broadcast(NewJSONMessage([]byte("{}")))
	}
	assert.Equal(t, int64(300-256), h.Dropped())
}

func TestEncode(t *testing.T) {
	data, err := Encode("metrics", map[string]float64{"fps": 30})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"metrics","data":{"fps":30}}`, string(data))

	_, err = Encode("bad", func() {})
	assert.Error(t, err)
}
