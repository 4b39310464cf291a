// Package market keeps the venue's market list cached and refreshed.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// ErrNoMarkets is returned when the venue lists no markets.
var ErrNoMarkets = errors.New("venue returned no markets")

// Registry caches the venue's market list.
type Registry interface {
	// Start performs the initial load, retrying until InitialLoadTimeout,
	// then refreshes in the background.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Markets returns a snapshot of all known markets ordered by symbol.
	Markets() []model.Market

	// LastSync returns the time of the last successful load.
	LastSync() time.Time
}

// Source fetches the market list. *api.Client implements it.
type Source interface {
	GetMarkets(ctx context.Context) ([]model.Market, error)
}
