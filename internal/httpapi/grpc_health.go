package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"royaltyhub.org/internal/obs"
)

// HealthReporter publishes the readiness probe through the standard gRPC
// health service, both for the empty service name and for ServiceName.
type HealthReporter struct {
	server *health.Server
	probe  ReadyProbe
}

func NewHealthReporter(probe ReadyProbe) *HealthReporter {
	if probe == nil {
		probe = PingProbe{}
	}
	h := &HealthReporter{server: health.NewServer(), probe: probe}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to s.
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Refresh runs the probe once and publishes the result.
func (h *HealthReporter) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := h.probe.Check(ctx)
	obs.SetReady(err == nil)
	if err != nil {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run refreshes every interval until ctx is done, then marks the service as
// shutting down.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := h.Refresh(ctx); err != nil && ctx.Err() == nil {
			obs.Logger().Warn().Err(err).Msg("readiness probe failed")
		}
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(obs.ServiceName, status)
}
