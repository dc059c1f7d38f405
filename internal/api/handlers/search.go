package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"autohawk/internal/logging"
	"autohawk/internal/search"
	"autohawk/internal/validation"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// Searcher runs one search; *search.Orchestrator satisfies it
type Searcher interface {
	SearchWith(ctx context.Context, params models.SearchParameters, ov search.Overrides) (*models.SearchResult, error)
}

// SearchHandler handles POST /api/v1/search. At most maxConcurrent searches
// run at once; further requests are rejected with 429 instead of queueing.
func SearchHandler(searcher Searcher, maxConcurrent int) echo.HandlerFunc {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	slots := make(chan struct{}, maxConcurrent)

	return func(c echo.Context) error {
		startTime := time.Now()
		reqID := requestID(c)
		logger := logging.LogWithRequestID(reqID)

		var req models.SearchRequest
		if err := c.Bind(&req); err != nil {
			logger.Warn("Failed to bind search request", map[string]interface{}{"error": err.Error()})
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format", reqID)
		}
		if req.RadiusMiles == 0 {
			req.RadiusMiles = models.DefaultRadiusMiles
		}

		if err := validation.Struct(&req); err != nil {
			logger.Warn("Search request validation failed", map[string]interface{}{"error": err.Error()})
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error(), reqID)
		}

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
		default:
			logger.Warn("Search rejected, all slots busy", map[string]interface{}{"max_concurrent": maxConcurrent})
			return errorJSON(c, http.StatusTooManyRequests, "busy", "Too many searches in progress, retry later", reqID)
		}

		logger.Info("Processing search request", map[string]interface{}{
			"make":  req.Make,
			"model": req.Model,
			"zip":   req.LocationCode,
		})

		result, err := searcher.SearchWith(c.Request().Context(), req.SearchParameters, overrides(req.Options))
		if err != nil {
			logger.Error("Search failed", map[string]interface{}{"error": err.Error()})

			if errors.Is(err, utils.ErrFailureThreshold) && result != nil {
				return c.JSON(utils.StatusCode(err), models.SearchResponse{
					Success:        false,
					Result:         result,
					Error:          err.Error(),
					ProcessingTime: time.Since(startTime),
					RequestID:      reqID,
				})
			}
			return errorJSON(c, utils.StatusCode(err), errorCode(err), err.Error(), reqID)
		}

		logger.Info("Search request completed", map[string]interface{}{
			"records":         len(result.Records),
			"truncation":      string(result.TruncationReason),
			"cache_hit":       result.CacheHit,
			"processing_time": utils.FormatDuration(time.Since(startTime)),
		})

		return c.JSON(http.StatusOK, models.SearchResponse{
			Success:        true,
			Result:         result,
			ProcessingTime: time.Since(startTime),
			RequestID:      reqID,
		})
	}
}

func overrides(opts *models.SearchOptions) search.Overrides {
	if opts == nil {
		return search.Overrides{}
	}
	return search.Overrides{
		MaxPages:   opts.MaxPages,
		MaxResults: opts.MaxResults,
		Timeout:    time.Duration(opts.TimeoutSeconds) * time.Second,
		SkipCache:  opts.SkipCache,
	}
}

func errorCode(err error) string {
	var se *utils.SearchError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "internal_error"
}

func errorJSON(c echo.Context, status int, code, message, reqID string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: reqID,
		Timestamp: time.Now(),
	})
}

// requestID returns the id assigned by the request middleware, or a fresh one
func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	return utils.GenerateRequestID()
}
