package api

import (
	"context"
	"fmt"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

const marketListPath = "/conf/pub:list:pair:exchange"

// GetMarkets fetches every exchange pair listed by the venue.
// Pairs that cannot be split into base/quote are skipped.
func (c *Client) GetMarkets(ctx context.Context) ([]model.Market, error) {
	// Response shape: [["BTCUSD","ETHUSD",...]]
	var resp [][]string
	if err := c.get(ctx, marketListPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	if len(resp) == 0 {
		return nil, nil
	}

	markets := make([]model.Market, 0, len(resp[0]))
	for _, pair := range resp[0] {
		m, ok := MarketFromPair(pair)
		if !ok {
			c.logger.Debug("skipping unrecognized pair", "pair", pair)
			continue
		}
		markets = append(markets, m)
	}

	return markets, nil
}
