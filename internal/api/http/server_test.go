package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/schemaui/internal/api/http/handlers"
	"github.com/flowmesh/schemaui/internal/api/http/middleware"
	"github.com/flowmesh/schemaui/internal/backend"
	"github.com/flowmesh/schemaui/internal/merge"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/test"
)

// upstream is an in-memory backend speaking the REST contract for Order
type upstream struct {
	mu     sync.Mutex
	orders map[string]map[string]any
	nextID int
	calls  map[string]int
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	u := &upstream{
		orders: map[string]map[string]any{
			"7": test.DecodeMap(t, `{"_id": 7, "name": "alpha", "price": 10, "side": "BUY", "lines": [], "tags": ["x"]}`),
			"8": test.DecodeMap(t, `{"_id": 8, "name": "beta", "price": 20, "side": "BUY", "lines": [], "tags": ["y"]}`),
			"9": test.DecodeMap(t, `{"_id": 9, "name": "gamma", "price": 5, "side": "SELL", "lines": [], "tags": []}`),
		},
		nextID: 100,
		calls:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /schema.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(test.SampleSchema)
	})
	mux.HandleFunc("GET /get-all-order", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.calls["get_all"]++
		out := make([]any, 0, len(u.orders))
		for _, id := range []string{"7", "8", "9"} {
			if o, ok := u.orders[id]; ok {
				out = append(out, o)
			}
		}
		for id, o := range u.orders {
			if n, _ := strconv.Atoi(id); n >= 100 {
				out = append(out, o)
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /get-order/{id}", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.calls["get"]++
		o, ok := u.orders[r.PathValue("id")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(o)
	})
	mux.HandleFunc("POST /create-order", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.calls["create"]++
		var o map[string]any
		json.NewDecoder(r.Body).Decode(&o)
		o["_id"] = u.nextID
		u.orders[strconv.Itoa(u.nextID)] = o
		u.nextID++
		json.NewEncoder(w).Encode(o)
	})
	mux.HandleFunc("PUT /put-order", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.calls["update"]++
		var o map[string]any
		json.NewDecoder(r.Body).Decode(&o)
		id := fmt.Sprint(o["_id"])
		u.orders[id] = o
		json.NewEncoder(w).Encode(o)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return u, srv
}

func (u *upstream) order(id string) map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.orders[id]
}

func (u *upstream) count(op string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[op]
}

type fixture struct {
	router   *Router
	upstream *upstream
	registry *schema.Registry
	store    *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	u, srv := newUpstream(t)

	client := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	t.Cleanup(func() { client.Close() })

	registry := schema.NewRegistry("")
	_, err := registry.Load(test.SampleSchema)
	require.NoError(t, err)

	st := store.New(store.Options{
		Registry:  registry,
		Backend:   client,
		Validator: schema.NewValidator(),
	})

	p, err := prefs.Open(t.TempDir(), prefs.Preferences{PageSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	collector := metrics.NewCollector()
	return &fixture{
		router: NewRouter(Deps{
			Registry:   registry,
			Store:      st,
			Prefs:      p,
			Source:     client,
			Metrics:    metrics.NewNodeMetrics(collector),
			Prometheus: collector.GetRegistry(),
		}),
		upstream: u,
		registry: registry,
		store:    st,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", Deps{Registry: schema.NewRegistry("")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, server.Start(ctx))
	assert.True(t, server.Ready())
	// idempotent
	require.NoError(t, server.Start(ctx))

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop(ctx))
	assert.False(t, server.Ready())
	require.NoError(t, server.Stop(ctx))
}

func TestServer_TLS(t *testing.T) {
	// borrow the test certificate of an httptest TLS server
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	defer ts.Close()

	server := NewServer("127.0.0.1:0", Deps{Registry: schema.NewRegistry("")}, WithTLS(ts.TLS))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Start(ctx))
	defer server.Stop(ctx)

	resp, err := ts.Client().Get("https://" + server.Addr() + "/version")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, resp.TLS)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		router := NewRouter(Deps{Registry: schema.NewRegistry(""), Ready: func() error { return nil }})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ready")
	})

	t.Run("not ready", func(t *testing.T) {
		router := NewRouter(Deps{Registry: schema.NewRegistry(""), Ready: func() error { return errors.New("schema not loaded") }})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not ready")
		assert.Contains(t, w.Body.String(), "schema not loaded")
	})
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestInvalidPaths(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"root path", http.MethodGet, "/", http.StatusNotFound},
		{"invalid API path", http.MethodGet, "/api/v1/invalid", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/models/Order/save", http.StatusMethodNotAllowed},
		{"health with query", http.MethodGet, "/health?<script>alert('xss')</script>", http.StatusOK},
		{"very long path", http.MethodGet, "/" + strings.Repeat("a", 10000), http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, tc.method, tc.path, nil)
			assert.Equal(t, tc.code, w.Code, "path: %s", tc.path)
		})
	}
}

func TestRecovery(t *testing.T) {
	f := newFixture(t)
	f.router.mux.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	var w *httptest.ResponseRecorder
	assert.NotPanics(t, func() {
		w = f.do(t, http.MethodGet, "/panic", nil)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestConcurrentRequests(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.do(t, http.MethodGet, "/api/v1/models/Order", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/v1/models", nil)
	w := f.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), metrics.MetricAPIRequestsTotal)
	assert.Contains(t, w.Body.String(), `endpoint="/api/v1/models"`)
}

func TestSchemaEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/schema.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, string(test.SampleSchema), w.Body.String())

	info := decode[handlers.SchemaInfoResponse](t, f.do(t, http.MethodGet, "/api/v1/schema", nil))
	assert.Equal(t, int64(1), info.Version)
	assert.ElementsMatch(t, []string{"Order", "Portfolio"}, info.Roots)

	w = f.do(t, http.MethodPost, "/api/v1/schema/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info = decode[handlers.SchemaInfoResponse](t, w)
	assert.Equal(t, int64(2), info.Version)
}

func TestSchemaNotLoaded(t *testing.T) {
	router := NewRouter(Deps{Registry: schema.NewRegistry(""), Store: store.New(store.Options{Registry: schema.NewRegistry("")})})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListModels(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/models/Order", nil)

	resp := decode[handlers.ListModelsResponse](t, f.do(t, http.MethodGet, "/api/v1/models", nil))
	byName := make(map[string]handlers.ModelInfo)
	for _, m := range resp.Models {
		byName[m.Name] = m
	}

	assert.True(t, byName["Order"].JSONRoot)
	assert.True(t, byName["Order"].Loaded)
	assert.False(t, byName["Category"].JSONRoot)
	assert.False(t, byName["Category"].Loaded)
	assert.Equal(t, "Portfolio", byName["PortfolioLimits"].Parent)
}

func TestUnknownModel(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/models/Nope/tree", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[handlers.ErrorResponse](t, w)
	assert.Equal(t, handlers.UnsupportedLayout, resp.Placeholder)
}

func TestEditAndSave(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"

	w := f.do(t, http.MethodPost, base+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[store.State](t, w).Items, 3)

	w = f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, store.ModeRead, decode[store.State](t, w).Mode)

	// edits need edit mode
	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "name", Value: "omega"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, base+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.ModeEdit, decode[store.State](t, w).Mode)

	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "name", Value: "omega"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[store.State](t, w).Dirty)

	// server populated fields stay read-only
	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "_id", Value: 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "price", Value: "cheap"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "nope", Value: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// elements only come from the elements endpoint
	w = f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "tags[999999999]", Value: "z"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	tr := decode[handlers.TreeResponse](t, f.do(t, http.MethodGet, base+"/tree", nil))
	assert.Equal(t, store.ModeEdit, tr.Mode)
	var name map[string]any
	for _, n := range tr.Nodes {
		if n.XPath == "name" {
			name = map[string]any{"value": n.Value, "previous": n.PreviousValue, "editable": n.Editable}
		}
	}
	require.NotNil(t, name)
	assert.Equal(t, "omega", name["value"])
	assert.Equal(t, "alpha", name["previous"])
	assert.Equal(t, true, name["editable"])

	w = f.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[store.State](t, w)
	assert.Equal(t, store.ModeRead, st.Mode)
	assert.False(t, st.Dirty)
	assert.Equal(t, "omega", f.upstream.order("7")["name"])
	assert.Equal(t, 1, f.upstream.count("update"))
	assert.NotContains(t, f.upstream.order("7"), "xpath")
}

func TestSave_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"

	w := f.do(t, http.MethodPost, base+"/new", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, store.ModeEdit, decode[store.State](t, w).Mode)

	w = f.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[handlers.ErrorResponse](t, w)
	require.NotEmpty(t, resp.Details)
	assert.Equal(t, "name", resp.Details[0].XPath)
	assert.Equal(t, 0, f.upstream.count("create"))

	f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "name", Value: "delta"})
	w = f.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, f.upstream.count("create"))
	assert.Equal(t, "delta", f.upstream.order("100")["name"])
}

func TestDiscardAndDismiss(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"

	f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})
	f.do(t, http.MethodPost, base+"/edit", nil)
	f.do(t, http.MethodPut, base+"/values", handlers.ValueRequest{XPath: "name", Value: "omega"})

	// loading another object would lose the edit
	w := f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 8})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, base+"/discard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[store.State](t, w)
	assert.Equal(t, store.ModeRead, st.Mode)
	assert.False(t, st.Dirty)

	w = f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 404})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	st = decode[store.State](t, f.do(t, http.MethodGet, base, nil))
	assert.NotEmpty(t, st.Error)

	w = f.do(t, http.MethodDelete, base+"/error", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[store.State](t, w).Error)
}

func TestElements(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"

	f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})
	f.do(t, http.MethodPost, base+"/edit", nil)

	w := f.do(t, http.MethodPost, base+"/elements", handlers.ElementRequest{XPath: "tags"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[store.State](t, w)
	assert.Len(t, st.Modified.(map[string]any)["tags"], 2)

	w = f.do(t, http.MethodDelete, base+"/elements?xpath=tags[0]", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st = decode[store.State](t, w)
	assert.Equal(t, []any{""}, st.Modified.(map[string]any)["tags"])

	w = f.do(t, http.MethodDelete, base+"/elements", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, base+"/elements?xpath=tags[", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExpand(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"
	f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})

	w := f.do(t, http.MethodPost, base+"/expand", handlers.ExpandRequest{XPath: "limits"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["expanded"])

	tr := decode[handlers.TreeResponse](t, f.do(t, http.MethodGet, base+"/tree", nil))
	for _, n := range tr.Nodes {
		if n.XPath == "limits" {
			assert.False(t, n.Expanded)
		}
	}
}

func TestResolve_NotInConflict(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"
	f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})

	w := f.do(t, http.MethodPost, base+"/resolve", handlers.ResolveRequest{Choices: map[string]merge.Choice{"name": "maybe"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, base+"/resolve", map[string]any{"choices": map[string]string{"name": "mine"}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTable(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"
	f.do(t, http.MethodPost, base+"/load", nil)

	t.Run("prefs page size", func(t *testing.T) {
		tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+"/table", nil))
		assert.Equal(t, 3, tbl.Total)
		assert.Equal(t, 2, tbl.PageSize)
		assert.Equal(t, 2, tbl.PageCount)
		assert.Len(t, tbl.Rows, 2)
	})

	t.Run("sort and page", func(t *testing.T) {
		tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+"/table?sort=-price&page_size=1&page=1", nil))
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "alpha", tbl.Rows[0]["name"])
	})

	t.Run("filter", func(t *testing.T) {
		tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+`/table?filter=side+%3D%3D+"BUY"`, nil))
		assert.Equal(t, 2, tbl.Total)
	})

	t.Run("common keys hidden", func(t *testing.T) {
		tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+`/table?filter=side+%3D%3D+"BUY"&hide_common=true`, nil))
		keys := make([]string, 0, len(tbl.Common))
		for _, c := range tbl.Common {
			keys = append(keys, c.Column.Key)
		}
		assert.Contains(t, keys, "side")
		for _, c := range tbl.Columns {
			assert.NotEqual(t, "side", c.Key)
		}
	})

	t.Run("bad query", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/table?page=-1", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/table?sort=name:up", nil).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/table?filter=name+%3D%3D", nil).Code)
	})

	t.Run("nested array", func(t *testing.T) {
		f.do(t, http.MethodPost, base+"/load", handlers.LoadRequest{ID: 7})
		tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+"/table?xpath=tags", nil))
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "x", tbl.Rows[0]["value"])
	})
}

func TestTableExport(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"
	f.do(t, http.MethodPost, base+"/load", nil)

	w := f.do(t, http.MethodGet, base+"/table/export?sort=name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[1], "alpha")
}

func TestPrefs(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/models/Order"

	p := decode[prefs.Preferences](t, f.do(t, http.MethodGet, base+"/prefs", nil))
	assert.Equal(t, 2, p.PageSize)

	w := f.do(t, http.MethodPut, base+"/prefs", map[string]any{
		"page_size": 10,
		"sort":      []map[string]string{{"field": "price", "direction": "desc"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.do(t, http.MethodPost, base+"/load", nil)
	tbl := decode[handlers.TableResponse](t, f.do(t, http.MethodGet, base+"/table", nil))
	assert.Equal(t, 10, tbl.PageSize)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "beta", tbl.Rows[0]["name"])

	w = f.do(t, http.MethodPut, base+"/prefs", map[string]any{"page_size": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChannels_Unknown(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/channels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/channels/order/reconnect", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
