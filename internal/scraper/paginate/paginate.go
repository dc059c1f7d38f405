// Package paginate drives a session and an extractor across result pages.
package paginate

import (
	"context"
	"errors"

	"autohawk/internal/logging"
	"autohawk/internal/logging/types"
	"autohawk/internal/scraper/extract"
	"autohawk/internal/scraper/query"
	"autohawk/internal/scraper/session"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// Extractor reads one loaded page
type Extractor interface {
	Extract(page *session.PageHandle) (*extract.Outcome, error)
}

// Limits bound one collection. Zero or negative values disable a limit,
// except MaxConsecutiveFailures which is at least 1.
type Limits struct {
	MaxPages               int
	MaxResults             int
	MaxConsecutiveFailures int
}

// Controller collects listings across pages. A Controller runs one
// collection at a time; create one per search.
type Controller struct {
	extractor Extractor
	keep      func(models.ListingRecord) bool
	logger    types.Logger

	lastFailure error
}

type Option func(*Controller)

func WithLogger(l types.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithFilter drops records for which keep returns false. Dropped records
// still claim their identity and are counted in the result's Filtered field,
// but never count toward MaxResults.
func WithFilter(keep func(models.ListingRecord) bool) Option {
	return func(c *Controller) { c.keep = keep }
}

func New(extractor Extractor, opts ...Option) *Controller {
	c := &Controller{extractor: extractor}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetGlobalLogger()
	}
	c.logger = c.logger.WithField("component", "paginate")
	return c
}

// LastFailure is the most recent page failure of the last Collect, or nil
func (c *Controller) LastFailure() error {
	return c.lastFailure
}

// run is the mutable state of one collection
type run struct {
	limits   Limits
	keep     func(models.ListingRecord) bool
	result   *models.SearchResult
	seen     map[string]struct{}
	dropped  bool
	failures int
	pages    int
}

// Collect walks every target in order and returns the deduplicated listings.
// Page failures are absorbed into the result's truncation reason; the only
// error returned is a closed session, alongside the partial result.
func (c *Controller) Collect(ctx context.Context, loader session.Loader, targets []query.QueryTarget, limits Limits) (*models.SearchResult, error) {
	if limits.MaxConsecutiveFailures < 1 {
		limits.MaxConsecutiveFailures = 1
	}
	c.lastFailure = nil

	r := &run{
		limits: limits,
		keep:   c.keep,
		result: &models.SearchResult{Records: []models.ListingRecord{}},
		seen:   make(map[string]struct{}),
	}

	for i, target := range targets {
		if reason := r.capReached(); reason != models.TruncationNone {
			r.result.TruncationReason = reason
			return r.result, nil
		}

		reason, err := c.collectTarget(ctx, loader, target, r)
		if err != nil {
			return r.result, err
		}
		if reason != models.TruncationNone {
			r.result.TruncationReason = reason
			c.logger.Info("Collection truncated", map[string]interface{}{
				"reason":  string(reason),
				"target":  target.Label,
				"records": len(r.result.Records),
				"pages":   r.result.PagesVisited,
			})
			return r.result, nil
		}

		c.logger.Debug("Target exhausted", map[string]interface{}{
			"target":    target.Label,
			"remaining": len(targets) - i - 1,
		})
	}

	if r.dropped {
		r.result.TruncationReason = models.TruncationResultCap
	}
	return r.result, nil
}

func (c *Controller) collectTarget(ctx context.Context, loader session.Loader, target query.QueryTarget, r *run) (models.TruncationReason, error) {
	cursor := NewPageCursor(target)

	for {
		if reason := ctxReason(ctx); reason != models.TruncationNone {
			return reason, nil
		}

		page, err := loader.Load(ctx, cursor.URL)
		if err != nil {
			if reason := ctxReason(ctx); reason != models.TruncationNone {
				return reason, nil
			}
			if errors.Is(err, utils.ErrSessionClosed) {
				return models.TruncationNone, err
			}

			r.fail(c, cursor.URL, err)
			if r.failures >= r.limits.MaxConsecutiveFailures {
				return models.TruncationFailureThreshold, nil
			}

			if !cursor.Retried {
				cursor.Retried = true
				continue
			}
			r.pages++
			if !cursor.Skip() {
				return models.TruncationNone, nil
			}
			if reason := r.pageCap(); reason != models.TruncationNone {
				return reason, nil
			}
			continue
		}

		cursor.MarkVisited()
		r.pages++

		outcome, err := c.extractor.Extract(page)
		if err != nil {
			r.fail(c, cursor.URL, err)
			if r.failures >= r.limits.MaxConsecutiveFailures {
				return models.TruncationFailureThreshold, nil
			}
			// an unchanged layout will not parse on retry
			if !cursor.Skip() {
				return models.TruncationNone, nil
			}
			if reason := r.pageCap(); reason != models.TruncationNone {
				return reason, nil
			}
			continue
		}

		r.failures = 0
		r.result.PagesVisited++
		r.result.ExtractionFailures += outcome.Skipped
		added := r.merge(outcome.Records)

		c.logger.Debug("Page collected", map[string]interface{}{
			"url":      cursor.URL,
			"page":     cursor.Page,
			"found":    len(outcome.Records),
			"added":    added,
			"skipped":  outcome.Skipped,
			"has_next": outcome.HasNextPage,
		})

		if !outcome.HasNextPage {
			return models.TruncationNone, nil
		}
		if reason := r.pageCap(); reason != models.TruncationNone {
			return reason, nil
		}
		if r.limits.MaxResults > 0 && len(r.result.Records) >= r.limits.MaxResults {
			return models.TruncationResultCap, nil
		}
		if !cursor.Follow(outcome.NextURL) {
			c.logger.Warn("Pagination cycle detected", map[string]interface{}{"url": outcome.NextURL})
			return models.TruncationNone, nil
		}
	}
}

// merge appends records with unseen identities, keeping the first occurrence.
// Only records passing the filter count toward the result cap.
func (r *run) merge(records []models.ListingRecord) int {
	added := 0
	for _, record := range records {
		if _, dup := r.seen[record.ID]; dup {
			continue
		}
		if r.keep != nil && !r.keep(record) {
			r.seen[record.ID] = struct{}{}
			r.result.Filtered++
			continue
		}
		if r.limits.MaxResults > 0 && len(r.result.Records) >= r.limits.MaxResults {
			r.dropped = true
			return added
		}
		r.seen[record.ID] = struct{}{}
		r.result.Records = append(r.result.Records, record)
		added++
	}
	return added
}

func (r *run) fail(c *Controller, url string, err error) {
	r.failures++
	c.lastFailure = err
	r.result.PageFailures = append(r.result.PageFailures, models.PageFailure{
		URL:     url,
		Kind:    failureKind(err),
		Message: err.Error(),
	})
	c.logger.Warn("Page failed", map[string]interface{}{
		"url":         url,
		"error":       err.Error(),
		"consecutive": r.failures,
	})
}

func (r *run) pageCap() models.TruncationReason {
	if r.limits.MaxPages > 0 && r.pages >= r.limits.MaxPages {
		return models.TruncationPageCap
	}
	return models.TruncationNone
}

// capReached checks the limits before another target is started
func (r *run) capReached() models.TruncationReason {
	if reason := r.pageCap(); reason != models.TruncationNone {
		return reason
	}
	if r.limits.MaxResults > 0 && len(r.result.Records) >= r.limits.MaxResults {
		return models.TruncationResultCap
	}
	return models.TruncationNone
}

func ctxReason(ctx context.Context) models.TruncationReason {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.TruncationTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return models.TruncationCancelled
	default:
		return models.TruncationNone
	}
}

func failureKind(err error) string {
	var se *utils.SearchError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "unknown"
}
