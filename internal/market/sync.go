package market

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// initialSync loads the market list, retrying with backoff
// until it succeeds or InitialLoadTimeout elapses.
func (c *cache) initialSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.InitialLoadTimeout)
	defer cancel()

	b := &backoff.Backoff{
		Min:    c.cfg.RetryMin,
		Max:    c.cfg.RetryMax,
		Jitter: true,
	}

	c.logger.Info("starting initial market sync")
	start := time.Now()

	for {
		err := c.load(ctx)
		if err == nil {
			c.logger.Info("initial sync complete",
				"markets", len(c.state.snapshot()),
				"attempts", int(b.Attempt())+1,
				"duration", time.Since(start),
			)
			return nil
		}

		d := b.Duration()
		c.logger.Warn("initial market sync failed",
			"error", err,
			"attempt", int(b.Attempt()),
			"retry_in", d,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("initial market sync: %w", err)
		case <-time.After(d):
		}
	}
}

// refreshLoop periodically reloads the market list.
func (c *cache) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.load(ctx); err != nil {
				// Keep serving the previous list.
				c.logger.Error("market refresh failed", "error", err)
			}
		}
	}
}

// load fetches markets and replaces the cache.
func (c *cache) load(ctx context.Context) error {
	markets, err := c.source.GetMarkets(ctx)
	if err != nil {
		return err
	}
	if len(markets) == 0 {
		return ErrNoMarkets
	}

	added, removed := c.state.replace(markets, time.Now())
	if added > 0 || removed > 0 {
		c.logger.Debug("market list updated",
			"total", len(markets),
			"added", added,
			"removed", removed,
		)
	}
	return nil
}
