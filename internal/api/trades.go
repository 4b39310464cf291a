package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// GetTrades fetches one page of public trades in ascending time order.
func (c *Client) GetTrades(ctx context.Context, symbol string, opts HistoryOptions) ([]model.Trade, error) {
	limit := opts.Limit
	if limit <= 0 || limit > MaxTradesPerPage {
		limit = MaxTradesPerPage
	}

	query := url.Values{}
	query.Set("start", strconv.FormatInt(opts.Start, 10))
	query.Set("end", strconv.FormatInt(opts.End, 10))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("sort", "1")

	var rows []rawRow
	if err := c.get(ctx, "/trades/"+symbol+"/hist", query, &rows); err != nil {
		return nil, fmt.Errorf("get trades %s: %w", symbol, err)
	}

	trades := make([]model.Trade, 0, len(rows))
	for _, row := range rows {
		trade, err := tradeFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("get trades %s: %w", symbol, err)
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// GetAllTrades fetches every trade in [start, end] by paginating forward.
// Trades sharing the boundary millisecond are de-duplicated by ID.
func (c *Client) GetAllTrades(ctx context.Context, symbol string, start, end int64) ([]model.Trade, error) {
	return c.getAllTradesWithLimit(ctx, symbol, start, end, MaxTradesPerPage)
}

func (c *Client) getAllTradesWithLimit(ctx context.Context, symbol string, start, end int64, limit int) ([]model.Trade, error) {
	var all []model.Trade
	seen := make(map[int64]struct{})
	opts := HistoryOptions{Start: start, End: end, Limit: limit}

	for {
		page, err := c.GetTrades(ctx, symbol, opts)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, tr := range page {
			if _, dup := seen[tr.ID]; dup {
				continue
			}
			seen[tr.ID] = struct{}{}
			all = append(all, tr)
			added++
		}

		if len(page) < opts.Limit || added == 0 {
			break
		}
		last := page[len(page)-1].MTS
		if last >= end {
			break
		}
		// Restart at the last millisecond; many trades can share one.
		opts.Start = last
	}

	return all, nil
}
