package server

import (
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"autohawk/internal/config"
	"autohawk/internal/grpc/interceptors"
	"autohawk/internal/logging"
	"autohawk/internal/logging/types"
)

// ServiceName is the health-checked service name advertised over gRPC
const ServiceName = "autohawk.v1.Search"

type Server struct {
	cfg    *config.Config
	grpc   *grpc.Server
	health *health.Server
	logger types.Logger
}

func NewServer(cfg *config.Config) *Server {
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(),
			interceptors.LoggingInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(),
			interceptors.StreamLoggingInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for debugging
	reflection.Register(grpcServer)

	return &Server{
		cfg:    cfg,
		grpc:   grpcServer,
		health: healthServer,
		logger: logging.GetGlobalLogger().WithField("component", "grpc"),
	}
}

func (s *Server) Start(lis net.Listener) error {
	s.SetServing(true)
	s.logger.Info("Starting gRPC server", map[string]interface{}{"address": lis.Addr().String()})
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls, forcing the stop after timeout
func (s *Server) Stop(timeout time.Duration) {
	s.logger.Info("Shutting down gRPC server...")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("gRPC graceful stop timed out, forcing")
		s.grpc.Stop()
	}
}

// Health exposes the health service, mainly for tests
func (s *Server) Health() *health.Server {
	return s.health
}
