package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohawk/internal/logging"
	"autohawk/pkg/utils"
)

const listingHTML = `<html><body><div class="vehicle-cards"><div class="vehicle-card"></div></div></body></html>`

type fakeDriver struct {
	mu        sync.Mutex
	launchErr error
	closeErr  error
	pages     map[string][]result
	launches  int
	navs      int
	closes    int
}

type result struct {
	html string
	err  error
}

func (f *fakeDriver) Launch(ctx context.Context, cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	return f.launchErr
}

// Navigate pops the next scripted result for url, repeating the last one
func (f *fakeDriver) Navigate(ctx context.Context, url string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs++
	queue := f.pages[url]
	if len(queue) == 0 {
		return Snapshot{}, errors.New("no such page")
	}
	r := queue[0]
	if len(queue) > 1 {
		f.pages[url] = queue[1:]
	}
	if r.err != nil {
		return Snapshot{}, r.err
	}
	return Snapshot{URL: url, HTML: r.html}, nil
}

func (f *fakeDriver) PID() int { return 0 }

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func testConfig() Config {
	return Config{
		NavigationTimeout:  time.Second,
		PageLoadRetries:    2,
		BackoffInitial:     time.Second,
		BackoffMax:         4 * time.Second,
		BlockingSignatures: []string{"g-recaptcha", "are you a robot"},
		ExpectedMarkers:    []string{"div.vehicle-card", "div.no-results"},
	}
}

func newTestManager(d *fakeDriver, sleeps *[]time.Duration) *Manager {
	return New(testConfig(),
		WithDriver(d),
		WithLogger(logging.NewLogger(logging.ErrorLevel)),
		WithSleep(func(ctx context.Context, wait time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, wait)
			}
			return ctx.Err()
		}),
	)
}

func TestStartLoadClose(t *testing.T) {
	d := &fakeDriver{pages: map[string][]result{"https://cars.test/a": {{html: listingHTML}}}}
	m := newTestManager(d, nil)
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateReady, m.State())
	require.NoError(t, m.Health())

	page, err := m.Load(context.Background(), "https://cars.test/a")
	require.NoError(t, err)
	assert.Equal(t, "https://cars.test/a", page.URL())
	assert.Equal(t, listingHTML, page.HTML())
	assert.Equal(t, 1, page.Attempts())
	assert.Equal(t, StateReady, m.State())

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, d.closes)
}

func TestCloseIsIdempotent(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(d, nil)
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, d.closes)
}

func TestCloseBeforeStart(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(d, nil)

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 0, d.closes)

	err := m.Start(context.Background())
	assert.True(t, errors.Is(err, utils.ErrSessionClosed))
	assert.Equal(t, 0, d.launches)
}

func TestLoadAfterClose(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(d, nil)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Close())

	_, err := m.Load(context.Background(), "https://cars.test/a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrSessionClosed))
	assert.Equal(t, 0, d.navs)
}

func TestStartFailure(t *testing.T) {
	d := &fakeDriver{launchErr: errors.New("chrome not found")}
	m := newTestManager(d, nil)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrSessionStart))
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, StateFailedStart, m.State())

	// partial launch resources are released exactly once
	require.NoError(t, m.Close())
	assert.Equal(t, 1, d.closes)

	_, err = m.Load(context.Background(), "https://cars.test/a")
	assert.True(t, errors.Is(err, utils.ErrSessionClosed))
}

func TestLoadRetriesWithBackoff(t *testing.T) {
	url := "https://cars.test/flaky"
	d := &fakeDriver{pages: map[string][]result{url: {
		{err: errors.New("net::ERR_CONNECTION_RESET")},
		{err: errors.New("net::ERR_CONNECTION_RESET")},
		{html: listingHTML},
	}}}
	var sleeps []time.Duration
	m := newTestManager(d, &sleeps)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	page, err := m.Load(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Attempts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestLoadExhaustsRetries(t *testing.T) {
	url := "https://cars.test/down"
	d := &fakeDriver{pages: map[string][]result{url: {{err: errors.New("dns failure")}}}}
	m := newTestManager(d, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	_, err := m.Load(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNavigation))
	assert.Equal(t, 3, d.navs)
	assert.Equal(t, StateReady, m.State())
}

func TestLoadDetectsBlockPage(t *testing.T) {
	url := "https://cars.test/blocked"
	d := &fakeDriver{pages: map[string][]result{url: {
		{html: `<html><body><div class="g-recaptcha"></div>Are you a robot?</body></html>`},
	}}}
	m := newTestManager(d, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	_, err := m.Load(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrBlocked))
	assert.Equal(t, 3, d.navs)
}

func TestLoadCancelledDuringBackoff(t *testing.T) {
	url := "https://cars.test/down"
	d := &fakeDriver{pages: map[string][]result{url: {{err: errors.New("timeout")}}}}
	ctx, cancel := context.WithCancel(context.Background())

	m := New(testConfig(),
		WithDriver(d),
		WithLogger(logging.NewLogger(logging.ErrorLevel)),
		WithSleep(func(ctx context.Context, wait time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	_, err := m.Load(ctx, url)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, d.navs)
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 15*time.Second, 1))
	assert.Equal(t, 2*time.Second, backoff(time.Second, 15*time.Second, 2))
	assert.Equal(t, 8*time.Second, backoff(time.Second, 15*time.Second, 4))
	assert.Equal(t, 15*time.Second, backoff(time.Second, 15*time.Second, 5))
	assert.Equal(t, 15*time.Second, backoff(time.Second, 15*time.Second, 40))
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestWithSessionClosesOnEveryPath(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(d, nil)
	boom := errors.New("boom")

	err := WithSession(context.Background(), m, func(ctx context.Context, loader Loader) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, d.closes)

	failing := &fakeDriver{launchErr: errors.New("no browser")}
	fm := newTestManager(failing, nil)
	called := false
	err = WithSession(context.Background(), fm, func(ctx context.Context, loader Loader) error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, utils.ErrSessionStart))
	assert.False(t, called)
	assert.Equal(t, 1, failing.closes)
}

func TestHealthRequiresReadySession(t *testing.T) {
	m := newTestManager(&fakeDriver{}, nil)
	assert.Error(t, m.Health())
	require.NoError(t, m.Start(context.Background()))
	assert.NoError(t, m.Health())
	require.NoError(t, m.Close())
	assert.Error(t, m.Health())
}
