package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// Config tunes loading and refreshing of the market list.
type Config struct {
	RefreshInterval    time.Duration
	InitialLoadTimeout time.Duration
	RetryMin           time.Duration // First retry delay for the initial load
	RetryMax           time.Duration
}

// DefaultConfig refreshes every 15 minutes and gives the first load two.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:    15 * time.Minute,
		InitialLoadTimeout: 2 * time.Minute,
		RetryMin:           500 * time.Millisecond,
		RetryMax:           30 * time.Second,
	}
}

type cache struct {
	cfg    Config
	source Source
	logger *slog.Logger
	state  *registryState

	stop    context.CancelFunc
	stopped chan struct{} // closed when the refresh loop exits
}

// NewRegistry returns a Registry backed by source. Call Start before use.
func NewRegistry(cfg Config, source Source, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &cache{
		cfg:    cfg,
		source: source,
		logger: logger,
		state:  newState(),
	}
}

func (c *cache) Start(ctx context.Context) error {
	ctx, c.stop = context.WithCancel(ctx)

	if err := c.initialSync(ctx); err != nil {
		c.stop()
		return err
	}

	c.stopped = make(chan struct{})
	go func() {
		defer close(c.stopped)
		c.refreshLoop(ctx)
	}()

	c.logger.Info("market registry started", "markets", len(c.state.snapshot()))
	return nil
}

func (c *cache) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	c.stop()
	if c.stopped == nil {
		return nil
	}

	select {
	case <-c.stopped:
		c.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *cache) Markets() []model.Market {
	return c.state.snapshot()
}

func (c *cache) LastSync() time.Time {
	return c.state.lastSync()
}
