package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/schemaui/internal/metrics"
)

func newRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/api/v1/models/{model}/tree", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodes":[]}`))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	r.Get("/abort", func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})
	return r
}

func serve(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// entries decodes one JSON log entry per line
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	return out
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := serve(h, "/", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	w = serve(h, "/", http.Header{RequestIDHeader: []string{"abc-123"}})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := newRouter(RequestID(), Logging(log))

	serve(r, "/api/v1/models/Order/tree", nil)
	serve(r, "/health", nil)
	serve(r, "/fail", nil)
	serve(r, "/missing", nil)

	logs := entries(t, &buf)
	require.Len(t, logs, 4)

	tree := logs[0]
	assert.Equal(t, "info", tree["level"])
	assert.Equal(t, "/api/v1/models/{model}/tree", tree["route"])
	assert.Equal(t, "Order", tree["model"])
	assert.EqualValues(t, http.StatusOK, tree["status"])
	assert.EqualValues(t, len(`{"nodes":[]}`), tree["bytes"])
	assert.NotEmpty(t, tree["request_id"])

	assert.Equal(t, "debug", logs[1]["level"])
	assert.Equal(t, "error", logs[2]["level"])
	assert.Equal(t, "warn", logs[3]["level"])
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(RequestID(), Recovery(zerolog.New(&buf)))

	w := serve(r, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"error","message":"internal server error"}`, w.Body.String())
	assert.True(t, strings.Contains(buf.String(), `"panic":"boom"`))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { serve(r, "/abort", nil) })
}

func TestMetrics_RoutePattern(t *testing.T) {
	collector := metrics.NewCollector()
	r := newRouter(Metrics(metrics.NewNodeMetrics(collector)))

	serve(r, "/api/v1/models/Order/tree", nil)
	serve(r, "/api/v1/models/Portfolio/tree", nil)
	serve(r, "/missing", nil)

	families, err := collector.GetRegistry().Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != metrics.MetricAPIRequestsTotal {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == metrics.LabelEndpoint {
					counts[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(2), counts["/api/v1/models/{model}/tree"])
	assert.Equal(t, float64(1), counts["unmatched"])
}

func TestMetrics_NilSafe(t *testing.T) {
	r := newRouter(Metrics(nil))
	assert.Equal(t, http.StatusOK, serve(r, "/health", nil).Code)
}
