// Package search runs a complete car-listing search: validation, query
// construction, one browser session, pagination and result assembly.
package search

import (
	"context"
	"time"

	"autohawk/internal/config"
	"autohawk/internal/logging"
	"autohawk/internal/logging/types"
	"autohawk/internal/scraper/extract"
	"autohawk/internal/scraper/paginate"
	"autohawk/internal/scraper/query"
	"autohawk/internal/scraper/session"
	"autohawk/internal/validation"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// SessionFactory creates a fresh, unstarted session for one search
type SessionFactory func(cfg session.Config) session.Lifecycle

// Config carries every limit and timeout the orchestrator applies
type Config struct {
	Search   config.SearchConfig
	Browser  config.BrowserConfig
	Site     config.SiteConfig
	CacheTTL time.Duration
}

// ConfigFrom selects the orchestrator settings from the application config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Search:   cfg.Search,
		Browser:  cfg.Browser,
		Site:     cfg.Site,
		CacheTTL: cfg.Cache.TTL,
	}
}

// Overrides adjust the configured limits for a single search. Zero values keep the configuration.
type Overrides struct {
	MaxPages   int
	MaxResults int
	Timeout    time.Duration
	SkipCache  bool
}

// Orchestrator is safe for concurrent use; each search owns its own session.
type Orchestrator struct {
	cfg        Config
	builder    *query.Builder
	extractor  paginate.Extractor
	newSession SessionFactory
	cache      Cache
	logger     types.Logger
}

type Option func(*Orchestrator)

// WithSessionFactory replaces the browser-backed session, mainly for tests
func WithSessionFactory(f SessionFactory) Option {
	return func(o *Orchestrator) { o.newSession = f }
}

func WithExtractor(e paginate.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithLogger(l types.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		builder: query.NewBuilder(cfg.Site),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.GetGlobalLogger()
	}
	if o.extractor == nil {
		o.extractor = extract.New(cfg.Site)
	}
	if o.newSession == nil {
		logger := o.logger
		o.newSession = func(sc session.Config) session.Lifecycle {
			return session.New(sc, session.WithLogger(logger))
		}
	}
	return o
}

// Search runs a search with the configured limits
func (o *Orchestrator) Search(ctx context.Context, params models.SearchParameters) (*models.SearchResult, error) {
	return o.SearchWith(ctx, params, Overrides{})
}

// SearchWith runs a search. It returns either a result, possibly partial and
// describing its own completeness, or a hard failure. When every page failed
// and nothing was collected, the result is returned together with a
// FailureThresholdError wrapping the last page failure.
func (o *Orchestrator) SearchWith(ctx context.Context, params models.SearchParameters, ov Overrides) (*models.SearchResult, error) {
	if err := validation.ValidateParameters(params); err != nil {
		return nil, err
	}

	started := time.Now()
	searchID := utils.GenerateRequestID()
	logger := o.logger.WithFields(map[string]interface{}{
		"search_id": searchID,
		"make":      params.Make,
		"model":     params.Model,
	})

	targets := o.builder.Build(params)
	fingerprint := query.Fingerprint(targets)

	limits := o.limits(ov)

	if o.cache != nil && !ov.SkipCache {
		cached, ok, err := o.cache.Get(ctx, fingerprint)
		if err != nil {
			logger.Warn("Cache lookup failed", map[string]interface{}{"error": err.Error()})
		} else if ok {
			if result, usable := fromCache(cached, limits); usable {
				logger.Info("Search served from cache", map[string]interface{}{
					"records":    len(result.Records),
					"truncation": string(result.TruncationReason),
				})
				return result, nil
			}
			logger.Debug("Cached result exceeds the page limit, searching again", map[string]interface{}{
				"cached_pages": cached.PagesVisited,
				"max_pages":    limits.MaxPages,
			})
		}
	}

	timeout := o.cfg.Search.Timeout
	if ov.Timeout > 0 {
		timeout = ov.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("Search started", map[string]interface{}{
		"targets":   len(targets),
		"max_pages": limits.MaxPages,
		"timeout":   timeout.String(),
	})

	popts := []paginate.Option{paginate.WithLogger(logger)}
	if params.NoAccidentsOnly {
		popts = append(popts, paginate.WithFilter(accidentFree))
	}
	controller := paginate.New(o.extractor, popts...)
	sess := o.newSession(session.ConfigFrom(o.cfg.Browser, o.cfg.Site))

	var result *models.SearchResult
	err := session.WithSession(ctx, sess, func(ctx context.Context, loader session.Loader) error {
		var collectErr error
		result, collectErr = controller.Collect(ctx, loader, targets, limits)
		return collectErr
	})
	if err != nil {
		logger.Error("Search failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	result.SearchID = searchID
	result.Parameters = params
	result.StartedAt = started
	result.Duration = time.Since(started)

	logger.Info("Search finished", map[string]interface{}{
		"records":    len(result.Records),
		"pages":      result.PagesVisited,
		"filtered":   result.Filtered,
		"truncation": string(result.TruncationReason),
		"duration":   utils.FormatDuration(result.Duration),
	})

	if result.TruncationReason == models.TruncationFailureThreshold && len(result.Records) == 0 {
		return result, utils.NewFailureThresholdError(controller.LastFailure())
	}

	if o.cache != nil && !result.Truncated() {
		if err := o.cache.Set(ctx, fingerprint, result, o.cfg.CacheTTL); err != nil {
			logger.Warn("Failed to cache search result", map[string]interface{}{"error": err.Error()})
		}
	}

	return result, nil
}

func (o *Orchestrator) limits(ov Overrides) paginate.Limits {
	limits := paginate.Limits{
		MaxPages:               o.cfg.Search.MaxPages,
		MaxResults:             o.cfg.Search.MaxResults,
		MaxConsecutiveFailures: o.cfg.Search.MaxConsecutiveFailures,
	}
	if ov.MaxPages > 0 {
		limits.MaxPages = ov.MaxPages
	}
	if ov.MaxResults > 0 {
		limits.MaxResults = ov.MaxResults
	}
	return limits
}

// fromCache applies this search's limits to a cached complete result. A
// result that needed more pages than MaxPages allows cannot be reproduced
// from the cache and is reported unusable. Records beyond MaxResults are
// dropped in order, as a live search would, and the result is marked result_cap.
func fromCache(cached *models.SearchResult, limits paginate.Limits) (*models.SearchResult, bool) {
	if limits.MaxPages > 0 && cached.PagesVisited > limits.MaxPages {
		return nil, false
	}
	cached.CacheHit = true
	if limits.MaxResults > 0 && len(cached.Records) > limits.MaxResults {
		cached.Records = cached.Records[:limits.MaxResults:limits.MaxResults]
		cached.TruncationReason = models.TruncationResultCap
	}
	return cached, true
}

// accidentFree keeps listings without a reported accident; listings with
// unknown history are kept
func accidentFree(record models.ListingRecord) bool {
	return record.Accidents != models.AccidentReported
}
