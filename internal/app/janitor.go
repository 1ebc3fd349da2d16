package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/termstack/internal/cache"
)

const (
	defaultJanitorInterval = time.Minute
	minJanitorInterval     = 5 * time.Second
)

// StartJanitor launches a background goroutine that purges expired cache
// entries at a fixed cadence. It returns immediately and stops with ctx.
func StartJanitor(ctx context.Context, c *cache.Cache, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purge(c, logger)
			}
		}
	}()
}

func purge(c *cache.Cache, logger *slog.Logger) {
	if n := c.Purge(); n > 0 {
		logger.Debug("purged expired cache entries", "count", n, "remaining", c.Len())
	}
}
