package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"autohawk/internal/logging/types"
)

// RodDriver drives a local Chrome/Chromium through the DevTools protocol
type RodDriver struct {
	logger types.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func NewRodDriver(logger types.Logger) *RodDriver {
	return &RodDriver{logger: logger}
}

// Launch starts the browser process and opens the single page used for navigation
func (d *RodDriver) Launch(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	bin, err := resolveBrowserBinary(cfg.DriverPath)
	if err != nil {
		return err
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")

	if bin != "" {
		l = l.Bin(bin)
		d.logger.Info("Using system Chrome browser", map[string]interface{}{"chrome_path": bin})
	} else {
		d.logger.Warn("System Chrome not found, Rod will download browser")
	}

	if cfg.UserAgent != "" {
		l = l.Set("user-agent", cfg.UserAgent)
	}
	d.launcher = l

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	d.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		d.logger.Warn("Failed to set viewport", map[string]interface{}{"error": err.Error()})
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			d.logger.Warn("Failed to set user agent", map[string]interface{}{"error": err.Error()})
		}
	}

	return nil
}

// Navigate loads url and returns the settled document
func (d *RodDriver) Navigate(ctx context.Context, url string) (Snapshot, error) {
	d.mu.Lock()
	page := d.page
	d.mu.Unlock()

	if page == nil {
		return Snapshot{}, errors.New("browser page is not open")
	}

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return Snapshot{}, fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return Snapshot{}, fmt.Errorf("page did not finish loading: %w", err)
	}

	html, err := p.HTML()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get page HTML: %w", err)
	}

	snap := Snapshot{URL: url, HTML: html}
	if info, err := p.Info(); err == nil && info.URL != "" {
		snap.URL = info.URL
	}
	return snap, nil
}

func (d *RodDriver) PID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.launcher == nil {
		return 0
	}
	return d.launcher.PID()
}

// Close releases the page, the browser connection and the process, in that order
func (d *RodDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		d.page = nil
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
	return errors.Join(errs...)
}

// resolveBrowserBinary returns the explicit path, which must exist, or else the
// first known install location or PATH entry. An empty result lets rod
// download a browser.
func resolveBrowserBinary(explicit string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return "", fmt.Errorf("browser binary %q not found: %w", explicit, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("browser binary %q is a directory", explicit)
		}
		return explicit, nil
	}

	commonPaths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
		"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, found := launcher.LookPath(); found {
		return path, nil
	}
	return "", nil
}
