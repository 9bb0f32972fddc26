package wsquery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type queryServer struct {
	srv      *httptest.Server
	accept   atomic.Bool
	attempts atomic.Int32
	// drop closes every connection right after the upgrade
	drop     atomic.Bool
	messages []string
	// conns receives every accepted connection
	conns chan *websocket.Conn
}

func newQueryServer(t *testing.T, messages ...string) *queryServer {
	t.Helper()
	qs := &queryServer{messages: messages, conns: make(chan *websocket.Conn, 8)}
	qs.accept.Store(true)

	upgrader := websocket.Upgrader{}
	qs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qs.attempts.Add(1)
		if !qs.accept.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if qs.drop.Load() {
			conn.Close()
			return
		}
		for _, m := range qs.messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		qs.conns <- conn
	}))
	t.Cleanup(qs.srv.Close)
	return qs
}

func (qs *queryServer) wsURL() string {
	return "ws" + strings.TrimPrefix(qs.srv.URL, "http")
}

type updates struct {
	mu   sync.Mutex
	last []any
	n    int
}

func (u *updates) record(items []any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.last = items
	u.n++
}

func (u *updates) snapshot() ([]any, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last, u.n
}

func TestClient_URL(t *testing.T) {
	c := New(Options{
		BaseURL: "ws://localhost:8000/",
		Name:    "get_orders_by_side",
		Params:  url.Values{"side": []string{"BUY"}},
	})
	assert.Equal(t, "ws://localhost:8000/ws-query-get_orders_by_side?side=BUY", c.URL())

	c = New(Options{BaseURL: "wss://h", Name: "all"})
	assert.Equal(t, "wss://h/ws-query-all", c.URL())
}

func TestMerge(t *testing.T) {
	items := []any{
		map[string]any{"_id": float64(1), "v": float64(1)},
		map[string]any{"_id": float64(2), "v": float64(1)},
	}
	delta := []any{
		map[string]any{"_id": float64(2), "v": float64(2), "xpath": "[1]"},
		map[string]any{"_id": float64(3), "v": float64(1)},
		map[string]any{"v": float64(9)},
		"scalar",
	}

	out := Merge(items, delta, "_id")
	require.Len(t, out, 5)
	assert.Equal(t, float64(2), out[1].(map[string]any)["v"])
	assert.NotContains(t, out[1].(map[string]any), "xpath")
	assert.Equal(t, float64(3), out[2].(map[string]any)["_id"])
	assert.Equal(t, "scalar", out[4])
	// input untouched
	assert.Equal(t, float64(1), items[1].(map[string]any)["v"])
}

func TestClient_ReceivesAndMergesDeltas(t *testing.T) {
	qs := newQueryServer(t,
		`[{"_id": 1, "v": 1}, {"_id": 2, "v": 1}]`,
		`[{"_id": 1, "v": 2}]`,
		`{"_id": 3, "v": 1}`,
		`not json`,
	)

	u := &updates{}
	c := New(Options{BaseURL: qs.wsURL(), Name: "orders", OnUpdate: u.record, RetryInterval: 10 * time.Millisecond})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool {
		_, n := u.snapshot()
		return n == 3
	}, timeout, tick)

	items, _ := u.snapshot()
	require.Len(t, items, 3)
	assert.Equal(t, float64(2), items[0].(map[string]any)["v"])
	assert.Equal(t, StateConnected, c.State())
	assert.Len(t, c.Items(), 3)

	assert.ErrorIs(t, c.Start(context.Background()), ErrRunning)
}

func TestClient_GivesUpThenManualReconnect(t *testing.T) {
	qs := newQueryServer(t, `[{"_id": 1}]`)
	qs.accept.Store(false)

	var states []State
	var mu sync.Mutex
	c := New(Options{
		BaseURL:       qs.wsURL(),
		Name:          "orders",
		MaxRetries:    2,
		RetryInterval: 5 * time.Millisecond,
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected && qs.attempts.Load() == 3
	}, timeout, tick)
	assert.Error(t, c.Err())

	// stays down without a manual reconnect
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), qs.attempts.Load())

	qs.accept.Store(true)
	require.NoError(t, c.Reconnect(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateConnected }, timeout, tick)
	assert.ErrorIs(t, c.Reconnect(context.Background()), ErrRunning)

	c.Stop()
	assert.Equal(t, StateDisconnected, c.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateDisconnected, StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	qs := newQueryServer(t, `[{"_id": 1}]`)

	c := New(Options{BaseURL: qs.wsURL(), Name: "orders", MaxRetries: 5, RetryInterval: 5 * time.Millisecond})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	first := <-qs.conns
	require.NoError(t, first.Close())

	select {
	case second := <-qs.conns:
		defer second.Close()
	case <-time.After(timeout):
		t.Fatal("channel did not reconnect")
	}
	require.Eventually(t, func() bool { return c.State() == StateConnected }, timeout, tick)
	// the replayed snapshot merges by identity
	assert.Len(t, c.Items(), 1)
}

func TestClient_DroppedConnectionsSpendRetries(t *testing.T) {
	qs := newQueryServer(t)
	qs.drop.Store(true)

	c := New(Options{BaseURL: qs.wsURL(), Name: "orders", MaxRetries: 3, RetryInterval: 50 * time.Millisecond})
	start := time.Now()
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool {
		return qs.attempts.Load() == 4 && c.State() == StateDisconnected && c.Err() != nil
	}, timeout, tick)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Error(t, c.Err())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(4), qs.attempts.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}
