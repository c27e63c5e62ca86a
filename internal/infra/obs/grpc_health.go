package obs

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported by the gRPC health service.
const ServiceName = "listingchat.v1.Chat"

// NewGRPCServer builds a gRPC server that only exposes the standard health
// service. A background loop keeps the serving status in sync with checks.
func NewGRPCServer(ctx context.Context, checks HealthHandlers, interval time.Duration, logger *slog.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if interval <= 0 {
		interval = 5 * time.Second
	}
	sync := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if failures := checks.Probe(ctx); len(failures) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if logger != nil {
				logger.Warn("readiness check failed", "failures", failures)
			}
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}
	sync()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
				sync()
			}
		}
	}()
	return srv, hs
}
