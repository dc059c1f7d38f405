package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"autohawk/internal/logging"
	"autohawk/pkg/models"

	"github.com/labstack/echo/v4"
)

var startTime = time.Now()

// Version is reported by the health endpoints; set at build time with -ldflags
var Version = "dev"

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{"request_id": requestID(c)})

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	}

	return c.JSON(http.StatusOK, response)
}

// ReadinessHandler runs every dependency check and reports 503 if any fails
func ReadinessHandler(checks map[string]Check) echo.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c echo.Context) error {
		logger := logging.GetGlobalLogger()
		logger.Debug("Readiness check requested", map[string]interface{}{"request_id": requestID(c)})

		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		status := "ready"
		code := http.StatusOK
		results := map[string]string{"api": "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = "not_ready"
				code = http.StatusServiceUnavailable
				logger.Warn("Readiness check failed", map[string]interface{}{
					"check": name,
					"error": err.Error(),
				})
				continue
			}
			results[name] = "ok"
		}

		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    results,
		})
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Liveness check requested", map[string]interface{}{"request_id": requestID(c)})

	response := models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
	}

	return c.JSON(http.StatusOK, response)
}
