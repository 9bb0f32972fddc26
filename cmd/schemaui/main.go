package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/flowmesh/schemaui/internal/api"
	"github.com/flowmesh/schemaui/internal/backend"
	"github.com/flowmesh/schemaui/internal/config"
	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/tracing"
	"github.com/flowmesh/schemaui/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	err = run(cfg)
	_ = logger.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Engine exited with error")
	}
}

func run(cfg *config.Config) error {
	l := logger.WithComponent("main")
	l.Info().
		Str("build", version.String()).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("Starting schemaui engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	var (
		promRegistry     *prometheus.Registry
		nodeMetrics      *metrics.NodeMetrics
		storeMetrics     *metrics.StoreMetrics
		transportMetrics *metrics.TransportMetrics
		metricsServer    *metrics.Server
	)
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollectorWithOptions(metrics.CollectorOptions{Runtime: true})
		promRegistry = collector.GetRegistry()
		nodeMetrics = metrics.NewNodeMetrics(collector)
		storeMetrics = metrics.NewStoreMetrics(collector)
		transportMetrics = metrics.NewTransportMetrics(collector)

		metricsServer = metrics.NewServer(cfg.Metrics.Addr, promRegistry)
		if err := metricsServer.Start(ctx); err != nil {
			return err
		}
		defer stopWithTimeout(metricsServer.Stop)
	}

	// Tracing
	tcfg := tracing.DefaultTracingConfig()
	tcfg.Enabled = cfg.Tracing.Enabled
	tcfg.Endpoint = cfg.Tracing.Endpoint
	tcfg.ExporterType = cfg.Tracing.ExporterType
	tcfg.Insecure = cfg.Tracing.Insecure
	tcfg.SampleRatio = cfg.Tracing.SampleRatio
	tcfg.ServiceVersion = version.Get().Version
	tcfg.Attributes = map[string]string{"schemaui.upstream": cfg.Upstream.BaseURL}
	provider, err := tracing.NewProvider(ctx, tcfg)
	if err != nil {
		return err
	}
	defer stopWithTimeout(provider.Shutdown)

	// Upstream and schema
	client := backend.New(backend.Options{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		Metrics: transportMetrics,
	})
	defer client.Close()

	registry := schema.NewRegistry(filepath.Join(cfg.Storage.DataDir, "schema"))
	if err := bootstrapSchema(ctx, registry, client, nodeMetrics); err != nil {
		return err
	}

	// State containers
	validator := schema.NewValidator()
	st := store.New(store.Options{
		Registry:  registry,
		Backend:   client,
		Validator: validator,
		IDField:   cfg.Upstream.IDField,
		Metrics:   storeMetrics,
		Tracer:    provider.GetTracer("schemaui.store"),
	})

	var current atomic.Pointer[schema.Document]
	if doc, err := registry.Current(); err == nil {
		current.Store(doc)
	}
	registry.OnReload(func(doc *schema.Document) {
		st.ForgetSchema(current.Swap(doc))
	})

	prefStore, err := prefs.Open(filepath.Join(cfg.Storage.DataDir, "prefs"), prefs.Preferences{
		PageSize: cfg.Storage.DefaultPageSize,
	})
	if err != nil {
		return err
	}
	defer prefStore.Close()

	var tlsConfig *tls.Config
	if cfg.Server.TLSEnabled {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	server := api.NewServer(api.Config{
		TLS:             tlsConfig,
		GRPCAddr:        cfg.Server.GRPCAddr,
		HTTPAddr:        cfg.Server.HTTPAddr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		LiveUpdates:     cfg.Upstream.LiveUpdates,
		WSBaseURL:       cfg.Upstream.WebSocketURL(),
		IDField:         cfg.Upstream.IDField,
		WSMaxRetries:    cfg.Upstream.WSMaxRetries,
		WSRetryInterval: cfg.Upstream.WSRetryInterval,
	}, api.Deps{
		Registry:         registry,
		Store:            st,
		Prefs:            prefStore,
		Source:           client,
		NodeMetrics:      nodeMetrics,
		TransportMetrics: transportMetrics,
		Prometheus:       promRegistry,
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	l.Info().
		Str("http", server.HTTPAddr()).
		Str("grpc", server.GRPCAddr()).
		Msg("Engine ready")

	<-ctx.Done()
	l.Info().Msg("Shutdown signal received")

	return stopWithTimeout(server.Stop)
}

// bootstrapSchema fetches the schema from the backend. When the backend is
// unreachable the last snapshot is used instead.
func bootstrapSchema(ctx context.Context, registry *schema.Registry, client *backend.Client, m *metrics.NodeMetrics) error {
	l := logger.WithComponent("main")

	data, err := client.Schema(ctx)
	if err == nil {
		_, err = registry.Load(data)
		m.RecordSchemaLoad("upstream", registry.Version(), err)
		if err == nil {
			return nil
		}
	}
	l.Warn().Err(err).Msg("Failed to load schema from upstream, trying snapshot")

	_, cacheErr := registry.LoadCached()
	m.RecordSchemaLoad("snapshot", registry.Version(), cacheErr)
	if cacheErr == nil {
		return nil
	}
	if errors.Is(cacheErr, os.ErrNotExist) {
		// Start anyway; a reload through the API makes the engine ready
		l.Warn().Msg("No schema snapshot, engine not ready until schema is reloaded")
		return nil
	}
	return cacheErr
}

func stopWithTimeout(stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return stop(ctx)
}
