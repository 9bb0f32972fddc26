package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowmesh/schemaui/internal/api/http/handlers"
	"github.com/flowmesh/schemaui/internal/api/http/middleware"
	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
)

// Deps are the engine components served over HTTP
type Deps struct {
	Registry *schema.Registry
	Store    *store.Store
	// Prefs is optional
	Prefs *prefs.Store
	// Source refetches the schema on reload; optional
	Source   handlers.SchemaSource
	// Channels is optional
	Channels handlers.ChannelSource
	Hub      *handlers.Hub

	Metrics *metrics.NodeMetrics
	// Prometheus, when set, is also served under /metrics
	Prometheus *prometheus.Registry
	// Ready reports readiness, nil means always ready
	Ready func() error
	// Context bounds background work started by requests
	Context context.Context
}

// Router manages HTTP routes and middleware
type Router struct {
	mux    *chi.Mux
	models *handlers.ModelHandlers
	schema *handlers.SchemaHandlers
	chans  *handlers.ChannelHandlers
	deps   Deps
}

// NewRouter creates a new router
func NewRouter(deps Deps) *Router {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	r := &Router{
		mux:    chi.NewRouter(),
		models: handlers.NewModelHandlers(deps.Registry, deps.Store, deps.Prefs),
		schema: handlers.NewSchemaHandlers(deps.Registry, deps.Source, deps.Metrics),
		chans:  handlers.NewChannelHandlers(deps.Context, deps.Channels),
		deps:   deps,
	}

	r.setupRoutes()

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes() {
	log := logger.WithComponent("http.middleware")
	r.mux.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.Tracing(),
		middleware.Metrics(r.deps.Metrics),
	)

	r.mux.Get("/health", handlers.HealthCheck)
	r.mux.Get("/ready", handlers.ReadinessCheck(r.deps.Ready))
	r.mux.Get("/version", handlers.Version)
	r.mux.Get("/schema.json", r.schema.Document)
	if r.deps.Prometheus != nil {
		r.mux.Handle("/metrics", handlers.MetricsHandler(r.deps.Prometheus))
	}
	if r.deps.Hub != nil {
		r.mux.Get("/ws", r.deps.Hub.ServeWebSocket)
	}

	r.mux.Route("/api/v1", func(api chi.Router) {
		api.Get("/schema", r.schema.Info)
		api.Post("/schema/reload", r.schema.Reload)

		api.Get("/channels", r.chans.List)
		api.Post("/channels/{name}/reconnect", r.chans.Reconnect)

		api.Get("/models", r.models.ListModels)
		api.Route("/models/{model}", func(m chi.Router) {
			m.Get("/", r.models.State)
			m.Post("/load", r.models.Load)
			m.Post("/select", r.models.Select)
			m.Get("/tree", r.models.Tree)
			m.Post("/expand", r.models.Expand)
			m.Get("/table", r.models.Table)
			m.Get("/table/export", r.models.Export)

			m.Post("/edit", r.models.RequestEdit)
			m.Put("/values", r.models.SetValue)
			m.Post("/elements", r.models.AddElement)
			m.Delete("/elements", r.models.RemoveElement)
			m.Post("/save", r.models.Save)
			m.Post("/discard", r.models.Discard)
			m.Post("/resolve", r.models.Resolve)
			m.Post("/new", r.models.New)
			m.Delete("/error", r.models.DismissError)

			m.Get("/prefs", r.models.GetPrefs)
			m.Put("/prefs", r.models.PutPrefs)
		})
	})
}
