package commands

import (
	"context"

	"autohawk/internal/api/handlers"
	"autohawk/internal/config"
	"autohawk/internal/logging"
	"autohawk/internal/search"
	"autohawk/pkg/utils"
)

// newCache returns the result cache selected by config and, when Redis backs
// it, a readiness check for Redis. When Redis cannot be reached the process
// falls back to an in-memory cache. A nil cache disables caching.
func newCache(ctx context.Context, cfg *config.Config) (search.Cache, handlers.Check, func()) {
	if !cfg.Cache.Enabled {
		return nil, nil, func() {}
	}
	logger := logging.GetGlobalLogger()

	client := utils.NewRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("Redis unavailable, using in-memory result cache", map[string]interface{}{"error": err.Error()})
		_ = client.Close()
		return search.NewMemoryCache(), nil, func() {}
	}

	logger.Info("Using Redis result cache", map[string]interface{}{"url": cfg.Redis.URL})
	return search.NewRedisCache(client), client.IsHealthy, func() { _ = client.Close() }
}
