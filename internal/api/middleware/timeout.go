package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"autohawk/internal/logging"
)

// TimeoutConfig bounds handlers in a route group. A timed out request gets a
// 503 with a JSON body.
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      timeout,
		ErrorMessage: `{"error":"timeout","message":"Request timed out"}`,
		OnTimeoutRouteErrorHandler: func(err error, c echo.Context) {
			logging.GetGlobalLogger().Warn("Request timed out", map[string]interface{}{
				"path":  c.Path(),
				"error": err.Error(),
			})
		},
	})
}
