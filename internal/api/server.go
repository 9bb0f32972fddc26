package api

import (
	"context"
	"crypto/tls"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	grpcapi "github.com/flowmesh/schemaui/internal/api/grpc"
	httpapi "github.com/flowmesh/schemaui/internal/api/http"
	"github.com/flowmesh/schemaui/internal/api/http/handlers"
	"github.com/flowmesh/schemaui/internal/backend"
	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/wsquery"
)

// healthInterval is how often the gRPC health status is re-evaluated
const healthInterval = 5 * time.Second

// Config holds configuration for the API server
type Config struct {
	GRPCAddr       string
	HTTPAddr       string
	AllowedOrigins []string
	// TLS, when set, secures both listeners
	TLS *tls.Config

	// LiveUpdates opens one query channel per JSON-root model
	LiveUpdates bool
	// WSBaseURL is the ws(s):// address of the upstream backend
	WSBaseURL       string
	IDField         string
	WSMaxRetries    uint
	WSRetryInterval time.Duration
}

// Deps are the engine components the server exposes
type Deps struct {
	Registry *schema.Registry
	Store    *store.Store
	Prefs    *prefs.Store
	Source   handlers.SchemaSource

	NodeMetrics      *metrics.NodeMetrics
	TransportMetrics *metrics.TransportMetrics
	Prometheus       *prometheus.Registry
}

// Server manages the gRPC and HTTP servers, the WebSocket hub and the
// upstream query channels
type Server struct {
	cfg        Config
	deps       Deps
	grpcServer *grpcapi.Server
	httpServer *httpapi.Server
	health     *grpcapi.HealthService
	hub        *handlers.Hub

	// chMu guards the channel set, which follows the schema's JSON roots
	chMu            sync.Mutex
	channels        map[string]*wsquery.Client
	channelsRunning bool

	// runCtx bounds the hub, the health loop and the query channels
	runCtx      context.Context
	unsubscribe func()
	cancel      context.CancelFunc
	log         zerolog.Logger
	ready       bool
	mu          sync.RWMutex
}

// NewServer creates a new API server. With live updates the query channels
// are derived from the schema and reconciled on every reload, so the server
// may be created before a schema is available.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		channels: make(map[string]*wsquery.Client),
		log:      logger.WithComponent("api"),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())

	s.health = grpcapi.NewHealthService(s.checkReady)
	s.hub = handlers.NewHub(handlers.HubOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        deps.NodeMetrics,
		Snapshot: func(model string) (store.State, bool) {
			sl, ok := deps.Store.Lookup(model)
			if !ok {
				return store.State{}, false
			}
			return sl.Snapshot(), true
		},
	})
	if cfg.LiveUpdates {
		if doc, err := deps.Registry.Current(); err == nil {
			s.reconcileChannels(doc)
		} else {
			s.log.Warn().Err(err).Msg("Schema not loaded, query channels open after the first load")
		}
		deps.Registry.OnReload(s.reconcileChannels)
	}

	var (
		grpcOpts []grpcapi.ServerOption
		httpOpts []httpapi.ServerOption
	)
	if cfg.TLS != nil {
		grpcOpts = append(grpcOpts, grpcapi.WithTLS(cfg.TLS))
		httpOpts = append(httpOpts, httpapi.WithTLS(cfg.TLS))
	}

	s.grpcServer = grpcapi.NewServer(cfg.GRPCAddr, s.health, grpcOpts...)
	s.httpServer = httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Registry:   deps.Registry,
		Store:      deps.Store,
		Prefs:      deps.Prefs,
		Source:     deps.Source,
		Channels:   s,
		Hub:        s.hub,
		Metrics:    deps.NodeMetrics,
		Prometheus: deps.Prometheus,
		Ready:      s.checkReady,
		Context:    s.runCtx,
	}, httpOpts...)

	return s
}

// reconcileChannels opens a query channel per JSON-root model of doc and
// closes the channels of models that are gone. Every update replaces the
// model's collection.
func (s *Server) reconcileChannels(doc *schema.Document) {
	want := make(map[string]string)
	for _, model := range doc.JSONRootModels() {
		want[backend.Endpoint(model)] = model
	}

	s.chMu.Lock()
	defer s.chMu.Unlock()

	for name, c := range s.channels {
		if _, ok := want[name]; ok {
			continue
		}
		c.Stop()
		delete(s.channels, name)
		s.health.SetChannelState(name, wsquery.StateDisconnected)
		s.log.Info().Str("channel", name).Msg("Query channel closed, model is no longer a JSON root")
	}

	for name, model := range want {
		if _, ok := s.channels[name]; ok {
			continue
		}
		c := s.newChannel(name, model)
		s.channels[name] = c
		if !s.channelsRunning {
			continue
		}
		if err := c.Start(s.runCtx); err != nil {
			s.log.Warn().Err(err).Str("channel", name).Msg("Failed to start query channel")
		}
	}
}

func (s *Server) newChannel(name, model string) *wsquery.Client {
	log := logger.WithModel("api.channels", model)
	return wsquery.New(wsquery.Options{
		BaseURL:       s.cfg.WSBaseURL,
		Name:          name,
		IDField:       s.cfg.IDField,
		MaxRetries:    s.cfg.WSMaxRetries,
		RetryInterval: s.cfg.WSRetryInterval,
		Metrics:       s.deps.TransportMetrics,
		OnUpdate: func(items []any) {
			sl, err := s.deps.Store.Slice(model)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping query channel update")
				return
			}
			if err := sl.SyncItems(context.Background(), items); err != nil {
				log.Warn().Err(err).Msg("Failed to apply query channel update")
			}
		},
		OnState: func(state wsquery.State) {
			s.health.SetChannelState(name, state)
			s.hub.BroadcastChannelState(name, state)
		},
	})
}

func (s *Server) startChannels() {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	s.channelsRunning = true
	for name, c := range s.channels {
		if err := c.Start(s.runCtx); err != nil {
			s.log.Warn().Err(err).Str("channel", name).Msg("Failed to start query channel")
		}
	}
}

func (s *Server) stopChannels() {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	s.channelsRunning = false
	for _, c := range s.channels {
		c.Stop()
	}
}

// checkReady reports whether requests can be served
func (s *Server) checkReady() error {
	_, err := s.deps.Registry.Current()
	return err
}

// Start starts the hub, both servers and the query channels
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	s.log.Info().Msg("Starting API server")

	if s.cancel == nil {
		return errors.New("api server cannot be restarted")
	}

	go s.hub.Run(s.runCtx)
	go s.health.Run(s.runCtx, healthInterval)
	s.unsubscribe = s.deps.Store.Subscribe(s.hub.BroadcastState)

	// Start gRPC server
	if err := s.grpcServer.Start(ctx); err != nil {
		s.shutdownBackground()
		return err
	}

	// Start HTTP server
	if err := s.httpServer.Start(ctx); err != nil {
		// Stop gRPC server if HTTP fails
		s.grpcServer.Stop(ctx)
		s.shutdownBackground()
		return err
	}

	s.startChannels()

	s.ready = true
	s.log.Info().Int("channels", len(s.Channels())).Msg("API server started")

	return nil
}

// Stop gracefully stops everything started by Start
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping API server")

	s.stopChannels()

	// Stop HTTP server first
	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping HTTP server")
	}

	// Stop gRPC server
	if err := s.grpcServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping gRPC server")
	}

	s.shutdownBackground()

	s.ready = false
	s.log.Info().Msg("API server stopped")

	return nil
}

func (s *Server) shutdownBackground() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && s.grpcServer.Ready() && s.httpServer.Ready() && s.checkReady() == nil
}

// HTTPAddr returns the bound HTTP address
func (s *Server) HTTPAddr() string {
	return s.httpServer.Addr()
}

// GRPCAddr returns the bound gRPC address
func (s *Server) GRPCAddr() string {
	return s.grpcServer.Addr()
}

// Channels returns the upstream query channels sorted by name
func (s *Server) Channels() []*wsquery.Client {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	out := make([]*wsquery.Client, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
