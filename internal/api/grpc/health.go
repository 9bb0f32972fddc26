package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/wsquery"
)

// EngineService is the health service name of the engine as a whole
const EngineService = "schemaui.Engine"

// ChannelService returns the health service name of a query channel
func ChannelService(name string) string {
	return "schemaui.channel." + name
}

// HealthService reports readiness through the standard gRPC health protocol
type HealthService struct {
	server *health.Server
	ready  func() error
	log    zerolog.Logger
}

// NewHealthService creates a new health service. ready may be nil, in which
// case the engine is always serving.
func NewHealthService(ready func() error) *HealthService {
	h := &HealthService{
		server: health.NewServer(),
		ready:  ready,
		log:    logger.WithComponent("grpc.health"),
	}
	h.Refresh()
	return h
}

// Refresh re-evaluates the readiness probe
func (h *HealthService) Refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if h.ready != nil {
		if err := h.ready(); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Debug().Err(err).Msg("Engine not ready")
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(EngineService, status)
}

// SetChannelState publishes the connection state of a query channel
func (h *HealthService) SetChannelState(name string, state wsquery.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == wsquery.StateConnected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(ChannelService(name), status)
}

// Run refreshes the status every interval until ctx is done
func (h *HealthService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}

// Shutdown marks every service as not serving; watchers are notified
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
}
