package paginate

import (
	"net/url"
	"strings"

	"autohawk/internal/scraper/query"
)

// PageCursor tracks the position inside one query target
type PageCursor struct {
	Target query.QueryTarget
	Page   int
	URL    string
	// Retried is set once the current page has had its single retry
	Retried bool

	visited map[string]struct{}
}

func NewPageCursor(target query.QueryTarget) *PageCursor {
	return &PageCursor{
		Target:  target,
		Page:    1,
		URL:     target.URL,
		visited: make(map[string]struct{}),
	}
}

// MarkVisited records the current page
func (c *PageCursor) MarkVisited() {
	c.visited[normalize(c.URL)] = struct{}{}
}

// Visited reports whether raw was already loaded for this target
func (c *PageCursor) Visited(raw string) bool {
	_, ok := c.visited[normalize(raw)]
	return ok
}

// Follow moves to the next page, preferring the link the site supplied.
// It returns false when that page was already visited.
func (c *PageCursor) Follow(nextURL string) bool {
	if nextURL == "" {
		nextURL = c.Target.PageURL(c.Page + 1)
	}
	if c.Visited(nextURL) {
		return false
	}
	c.Page++
	c.URL = nextURL
	c.Retried = false
	return true
}

// Skip gives up on the current page and moves to the next page number
func (c *PageCursor) Skip() bool {
	c.MarkVisited()
	return c.Follow("")
}

// normalize drops the fragment and sorts the query so equivalent URLs compare equal
func normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String()
}
