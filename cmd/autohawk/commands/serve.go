package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"autohawk/internal/api/handlers"
	"autohawk/internal/api/routes"
	"autohawk/internal/config"
	"autohawk/internal/grpc/server"
	"autohawk/internal/logging"
	"autohawk/internal/mux"
	"autohawk/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve [--config <path/to/config.yaml>]",
	Short: "Serves the search API over HTTP and gRPC on one port.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("log_level") {
		cfg.Logging.Level = logLevel
	}
	if err := logging.InitializeLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting AutoHawk service", map[string]interface{}{"version": handlers.Version})

	ctx := cmd.Context()

	cache, redisReady, closeCache := newCache(ctx, cfg)
	defer closeCache()

	readiness := map[string]handlers.Check{}
	if redisReady != nil {
		readiness["redis"] = redisReady
	}

	orchestrator := search.NewOrchestrator(search.ConfigFrom(cfg), search.WithCache(cache))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routes.SetupRoutes(e, cfg, orchestrator, readiness)

	grpcServer := server.NewServer(cfg)
	go grpcServer.WatchReadiness(ctx, allChecks(readiness), 15*time.Second)

	m := mux.NewMultiplexer(cfg, grpcServer, e)
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := m.Start(address); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if err := m.Stop(); err != nil {
		logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("Server shutdown complete")
	return nil
}

// allChecks folds the readiness checks into one probe for the gRPC health service
func allChecks(checks map[string]handlers.Check) func(ctx context.Context) error {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(ctx context.Context) error {
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	}
}
