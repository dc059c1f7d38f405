package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/time/rate"

	"autohawk/internal/config"
	"autohawk/internal/logging"
	"autohawk/internal/logging/types"
	"autohawk/pkg/utils"
)

// State is the lifecycle position of a session
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateNavigating
	StateClosing
	StateClosed
	StateFailedStart
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailedStart:
		return "failed_start"
	default:
		return "unknown"
	}
}

// terminal states reject every operation except Close
func (s State) terminal() bool {
	return s == StateClosing || s == StateClosed || s == StateFailedStart
}

// Config is the per-session browser configuration
type Config struct {
	Headless           bool
	DriverPath         string
	NavigationTimeout  time.Duration
	PageLoadRetries    int
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
	UserAgent          string
	RequestsPerMinute  int
	BlockingSignatures []string
	// selectors whose presence proves a real listing page was served
	ExpectedMarkers []string
}

// ConfigFrom derives a session config from the application config
func ConfigFrom(browser config.BrowserConfig, site config.SiteConfig) Config {
	return Config{
		Headless:           browser.Headless,
		DriverPath:         browser.DriverPath,
		NavigationTimeout:  browser.NavigationTimeout,
		PageLoadRetries:    browser.PageLoadRetries,
		BackoffInitial:     browser.BackoffInitial,
		BackoffMax:         browser.BackoffMax,
		UserAgent:          browser.UserAgent,
		RequestsPerMinute:  browser.RequestsPerMinute,
		BlockingSignatures: browser.BlockingSignatures,
		ExpectedMarkers: []string{
			site.Selectors.Listing,
			site.Selectors.ResultsContainer,
			site.Selectors.NoResults,
		},
	}
}

// Loader loads pages; it is all the pagination layer sees of a session
type Loader interface {
	Load(ctx context.Context, url string) (*PageHandle, error)
}

// Lifecycle is a session that can be started, used and closed
type Lifecycle interface {
	Loader
	Start(ctx context.Context) error
	Close() error
}

// Manager owns one controlled browser session
type Manager struct {
	cfg      Config
	driver   Driver
	detector *BlockDetector
	limiter  *rate.Limiter
	logger   types.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
}

// Option customises a Manager
type Option func(*Manager)

// WithDriver replaces the rod driver, mainly for tests
func WithDriver(d Driver) Option {
	return func(m *Manager) { m.driver = d }
}

func WithLogger(l types.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSleep replaces the backoff sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// New creates a session manager in the Uninitialized state
func New(cfg Config, opts ...Option) *Manager {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.PageLoadRetries < 0 {
		cfg.PageLoadRetries = 0
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	m := &Manager{
		cfg:      cfg,
		detector: NewBlockDetector(cfg.ExpectedMarkers, cfg.BlockingSignatures),
		limiter:  rate.NewLimiter(limit, 1),
		sleep:    sleepContext,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.GetGlobalLogger()
	}
	m.logger = m.logger.WithField("component", "session")
	if m.driver == nil {
		m.driver = NewRodDriver(m.logger)
	}
	return m
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start launches the browser. A launch failure leaves the session in FailedStart.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state.terminal():
		m.mu.Unlock()
		return utils.NewSessionClosedError("start")
	case m.state != StateUninitialized:
		state := m.state
		m.mu.Unlock()
		return utils.NewSessionStartError(fmt.Errorf("session already %s", state))
	}
	m.state = StateStarting
	m.mu.Unlock()

	started := time.Now()
	err := m.driver.Launch(ctx, m.cfg)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = StateFailedStart
		// release whatever the launch left behind
		if cerr := m.driver.Close(); cerr != nil {
			m.logger.Debug("Cleanup after failed launch reported an error", map[string]interface{}{"error": cerr.Error()})
		}
		m.logger.Error("Browser session failed to start", map[string]interface{}{"error": err.Error()})
		return utils.NewSessionStartError(err)
	}

	if m.state == StateClosing {
		// Close arrived while launching
		_ = m.driver.Close()
		m.state = StateClosed
		return utils.NewSessionClosedError("start")
	}

	m.state = StateReady
	m.logger.Info("Browser session started", map[string]interface{}{
		"headless": m.cfg.Headless,
		"pid":      m.driver.PID(),
		"elapsed":  utils.FormatDuration(time.Since(started)),
	})
	return nil
}

// Load navigates to url, retrying with exponential backoff.
// Context cancellation is returned as the bare context error.
func (m *Manager) Load(ctx context.Context, url string) (*PageHandle, error) {
	if err := m.beginNavigation(); err != nil {
		return nil, err
	}
	defer m.endNavigation()

	var lastErr error
	for attempt := 0; attempt <= m.cfg.PageLoadRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(m.cfg.BackoffInitial, m.cfg.BackoffMax, attempt)
			m.logger.Warn("Retrying page load", map[string]interface{}{
				"url":     url,
				"attempt": attempt + 1,
				"wait":    wait.String(),
				"error":   lastErr.Error(),
			})
			if err := m.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// the limiter refuses waits that would overrun the deadline
			return nil, context.DeadlineExceeded
		}

		page, err := m.navigate(ctx, url)
		if err == nil {
			page.attempts = attempt + 1
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if m.State().terminal() {
			return nil, utils.NewSessionClosedError("load")
		}
		lastErr = err
	}

	return nil, lastErr
}

func (m *Manager) navigate(ctx context.Context, url string) (*PageHandle, error) {
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer cancel()

	snap, err := m.driver.Navigate(navCtx, url)
	if err != nil {
		return nil, utils.NewNavigationError(url, err)
	}

	if sig, blocked := m.detector.Detect(snap.HTML); blocked {
		return nil, utils.NewBlockedError(url, sig)
	}

	finalURL := snap.URL
	if finalURL == "" {
		finalURL = url
	}

	m.logger.Debug("Page loaded", map[string]interface{}{
		"url":       url,
		"final_url": finalURL,
		"bytes":     len(snap.HTML),
	})

	return &PageHandle{
		requestedURL: url,
		url:          finalURL,
		html:         snap.HTML,
		loadedAt:     time.Now(),
	}, nil
}

func (m *Manager) beginNavigation() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		m.state = StateNavigating
		return nil
	case StateClosing, StateClosed, StateFailedStart:
		return utils.NewSessionClosedError("load")
	default:
		return fmt.Errorf("session is %s, not ready to load pages", m.state)
	}
}

func (m *Manager) endNavigation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateNavigating {
		m.state = StateReady
	}
}

// Close terminates the session. It is safe to call any number of times, in any state.
func (m *Manager) Close() error {
	m.mu.Lock()
	switch m.state {
	case StateClosing, StateClosed, StateFailedStart:
		m.mu.Unlock()
		return nil
	case StateUninitialized:
		m.state = StateClosed
		m.mu.Unlock()
		return nil
	case StateStarting:
		// Start finishes the teardown once the launch returns
		m.state = StateClosing
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosing
	m.mu.Unlock()

	err := m.driver.Close()

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Browser session closed with errors", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to close browser session: %w", err)
	}

	m.logger.Info("Browser session closed")
	return nil
}

// Health verifies the session is usable and its browser process is still alive
func (m *Manager) Health() error {
	state := m.State()
	if state != StateReady && state != StateNavigating {
		return fmt.Errorf("session is %s", state)
	}

	pid := m.driver.PID()
	if pid <= 0 {
		return nil
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return fmt.Errorf("failed to inspect browser process %d: %w", pid, err)
	}
	if !alive {
		return errors.New("browser process has exited")
	}
	return nil
}

// backoff returns the wait before retry n (1-based): initial doubled per retry, capped at max
func backoff(initial, max time.Duration, retry int) time.Duration {
	wait := initial
	for i := 1; i < retry; i++ {
		wait *= 2
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
