package server

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SetServing updates the overall and per-service health status
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// WatchReadiness runs probe every interval and mirrors the outcome into the
// health service until ctx ends
func (s *Server) WatchReadiness(ctx context.Context, probe func(ctx context.Context) error, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		if err := probe(probeCtx); err != nil {
			s.logger.Warn("Readiness probe failed", map[string]interface{}{"error": err.Error()})
			s.SetServing(false)
			return
		}
		s.SetServing(true)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
