package session

import (
	"context"

	"autohawk/internal/logging"
)

// WithSession starts s, runs fn with it and closes it on every exit path,
// including start failure and panics in fn.
func WithSession(ctx context.Context, s Lifecycle, fn func(ctx context.Context, loader Loader) error) error {
	defer func() {
		if err := s.Close(); err != nil {
			logging.GetGlobalLogger().Warn("Session close failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := s.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}
