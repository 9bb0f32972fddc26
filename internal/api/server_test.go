package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/test"
	"github.com/flowmesh/schemaui/internal/wsquery"
)

// newQueryBackend serves ws-query channels; the order channel sends one
// result set, every channel stays open until the client leaves
func newQueryBackend(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if r.URL.Path == "/ws-query-order" {
			msg := `[{"_id": 1, "name": "alpha", "price": 10}, {"_id": 2, "name": "beta", "price": 20}]`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, registry *schema.Registry, live bool, wsURL string) (*Server, *store.Store) {
	t.Helper()
	st := store.New(store.Options{Registry: registry})
	s := NewServer(Config{
		GRPCAddr:        "127.0.0.1:0",
		HTTPAddr:        "127.0.0.1:0",
		LiveUpdates:     live,
		WSBaseURL:       wsURL,
		IDField:         "_id",
		WSMaxRetries:    1,
		WSRetryInterval: 10 * time.Millisecond,
	}, Deps{Registry: registry, Store: st})
	return s, st
}

func stopServer(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestServer_StartStop(t *testing.T) {
	registry := schema.NewRegistry("")
	_, err := registry.Load(test.SampleSchema)
	require.NoError(t, err)

	s, _ := newTestServer(t, registry, false, "")
	assert.Empty(t, s.Channels())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Ready())

	resp, err := http.Get("http://" + s.HTTPAddr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))

	stopServer(t, s)
	assert.False(t, s.Ready())

	// Stopping twice is a no-op
	stopServer(t, s)
}

func TestServer_NotReadyWithoutSchema(t *testing.T) {
	registry := schema.NewRegistry("")

	s, _ := newTestServer(t, registry, true, "ws://127.0.0.1:1")
	assert.Empty(t, s.Channels(), "channels are derived from the schema")

	require.NoError(t, s.Start(context.Background()))
	defer stopServer(t, s)

	assert.False(t, s.Ready())

	resp, err := http.Get("http://" + s.HTTPAddr() + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_LiveUpdates(t *testing.T) {
	registry := schema.NewRegistry("")
	_, err := registry.Load(test.SampleSchema)
	require.NoError(t, err)

	backend := newQueryBackend(t)
	s, st := newTestServer(t, registry, true, "ws"+strings.TrimPrefix(backend.URL, "http"))

	names := make([]string, 0, len(s.Channels()))
	for _, c := range s.Channels() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"order", "portfolio"}, names)

	require.NoError(t, s.Start(context.Background()))
	defer stopServer(t, s)

	require.Eventually(t, func() bool {
		sl, ok := st.Lookup("Order")
		return ok && len(sl.Snapshot().Items) == 2
	}, 2*time.Second, 10*time.Millisecond)

	sl, _ := st.Lookup("Order")
	first, ok := sl.Snapshot().Items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alpha", first["name"])
}

func channelNames(s *Server) []string {
	names := make([]string, 0)
	for _, c := range s.Channels() {
		names = append(names, c.Name())
	}
	return names
}

func TestServer_ChannelsFollowSchemaReload(t *testing.T) {
	registry := schema.NewRegistry("")

	backend := newQueryBackend(t)
	s, st := newTestServer(t, registry, true, "ws"+strings.TrimPrefix(backend.URL, "http"))
	require.NoError(t, s.Start(context.Background()))
	defer stopServer(t, s)
	assert.Empty(t, s.Channels())

	// the first schema arrives after startup
	_, err := registry.Load(test.SampleSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "portfolio"}, channelNames(s))

	require.Eventually(t, func() bool {
		sl, ok := st.Lookup("Order")
		return ok && len(sl.Snapshot().Items) == 2
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.HTTPAddr() + "/api/v1/channels")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Portfolio stops being a JSON root
	marker := []byte(`"json_root": true,`)
	last := bytes.LastIndex(test.SampleSchema, marker)
	require.Positive(t, last)
	reduced := append(append([]byte(nil), test.SampleSchema[:last]...), test.SampleSchema[last+len(marker):]...)

	_, err = registry.Load(reduced)
	require.NoError(t, err)
	assert.Equal(t, []string{"order"}, channelNames(s))

	order := s.Channels()[0]
	require.Eventually(t, func() bool { return order.State() == wsquery.StateConnected }, 2*time.Second, 10*time.Millisecond)
}
