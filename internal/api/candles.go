package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// Timeframes accepted by the candles endpoint.
var Timeframes = map[string]struct{}{
	"1m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "3h": {}, "6h": {}, "12h": {},
	"1D": {}, "1W": {}, "14D": {}, "1M": {},
}

// ValidTimeframe reports whether tf is a supported candle timeframe.
func ValidTimeframe(tf string) bool {
	_, ok := Timeframes[tf]
	return ok
}

// GetCandles fetches one page of candles in ascending time order.
func (c *Client) GetCandles(ctx context.Context, symbol, tf string, opts HistoryOptions) ([]model.Candle, error) {
	limit := opts.Limit
	if limit <= 0 || limit > MaxCandlesPerPage {
		limit = MaxCandlesPerPage
	}

	query := url.Values{}
	query.Set("start", strconv.FormatInt(opts.Start, 10))
	query.Set("end", strconv.FormatInt(opts.End, 10))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("sort", "1")

	path := fmt.Sprintf("/candles/trade:%s:%s/hist", tf, symbol)

	var rows []rawRow
	if err := c.get(ctx, path, query, &rows); err != nil {
		return nil, fmt.Errorf("get candles %s %s: %w", symbol, tf, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := candleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("get candles %s %s: %w", symbol, tf, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetAllCandles fetches every candle in [start, end] by paginating forward.
func (c *Client) GetAllCandles(ctx context.Context, symbol, tf string, start, end int64) ([]model.Candle, error) {
	var all []model.Candle
	opts := HistoryOptions{Start: start, End: end, Limit: MaxCandlesPerPage}

	for {
		page, err := c.GetCandles(ctx, symbol, tf, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)

		if len(page) < opts.Limit {
			break
		}
		last := page[len(page)-1].MTS
		if last >= end {
			break
		}
		opts.Start = last + 1
	}

	return all, nil
}
