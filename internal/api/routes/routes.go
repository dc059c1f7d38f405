package routes

import (
	"net/http"

	"autohawk/internal/api/handlers"
	"autohawk/internal/api/middleware"
	"autohawk/internal/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, searcher handlers.Searcher, readiness map[string]handlers.Check) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig(cfg.Server.AllowedOrigins))
	e.Use(middleware.RequestValidation())

	// Health check routes
	health := e.Group("/health", middleware.TimeoutConfig(cfg.Server.ReadTimeout))
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(readiness))
		health.GET("/live", handlers.LivenessHandler)
	}

	// API v1 routes; searches are bounded by the search timeout, not the server read timeout
	v1 := e.Group("/api/v1")
	{
		v1.POST("/search", handlers.SearchHandler(searcher, cfg.Search.MaxConcurrent))
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "AutoHawk",
			"version": handlers.Version,
			"status":  "running",
		})
	})
}
