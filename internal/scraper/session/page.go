package session

import (
	"context"
	"time"
)

// Snapshot is what a driver returns after a navigation settles
type Snapshot struct {
	URL  string
	HTML string
}

// Driver is the browser automation backend controlled by a Manager.
// Implementations are not required to be safe for concurrent navigation.
type Driver interface {
	Launch(ctx context.Context, cfg Config) error
	Navigate(ctx context.Context, url string) (Snapshot, error)
	// PID of the browser process, or 0 when unknown
	PID() int
	Close() error
}

// PageHandle is an opaque, read-only view of one loaded page
type PageHandle struct {
	requestedURL string
	url          string
	html         string
	loadedAt     time.Time
	attempts     int
}

// NewPageHandle builds a handle from already-loaded content
func NewPageHandle(url, html string) *PageHandle {
	return &PageHandle{
		requestedURL: url,
		url:          url,
		html:         html,
		loadedAt:     time.Now(),
		attempts:     1,
	}
}

// URL is the final URL after redirects
func (p *PageHandle) URL() string { return p.url }

// RequestedURL is the URL passed to Load
func (p *PageHandle) RequestedURL() string { return p.requestedURL }

func (p *PageHandle) HTML() string { return p.html }

func (p *PageHandle) LoadedAt() time.Time { return p.loadedAt }

// Attempts is how many navigations it took to load the page
func (p *PageHandle) Attempts() int { return p.attempts }
