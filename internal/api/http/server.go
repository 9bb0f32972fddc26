package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowmesh/schemaui/internal/logger"
)

// Server represents an HTTP server
type Server struct {
	httpServer *http.Server
	addr       string
	listener   net.Listener
	tls        *tls.Config
	log        zerolog.Logger
	ready      bool
	mu         sync.RWMutex
	router     *Router
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithTLS serves HTTPS with cfg; the hub then accepts wss:// clients
func WithTLS(cfg *tls.Config) ServerOption {
	return func(s *Server) { s.tls = cfg }
}

// NewServer creates the HTTP server of the engine API
func NewServer(addr string, deps Deps, opts ...ServerOption) *Server {
	s := &Server{
		addr: addr,
		log:  logger.WithComponent("http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = NewRouter(deps)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}

	// Start server in a goroutine
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.ready = true
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.tls != nil).Msg("HTTP server started")

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return err
	}

	s.ready = false
	s.log.Info().Msg("HTTP server stopped")

	return nil
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}
