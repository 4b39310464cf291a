package handler

import (
	"context"
	"fmt"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
)

func (h *handlers) getMarkets(ctx context.Context, req *router.Request) error {
	return req.Reply(protocol.TagMarkets, h.Markets.Markets())
}

// getCandles: [exchange, symbol, tf, start, end, meta?]
func (h *handlers) getCandles(ctx context.Context, req *router.Request) error {
	var (
		exchange, symbol, tf string
		start, end           int64
	)
	if err := decodeArgs(req.Message, &exchange, &symbol, &tf, &start, &end); err != nil {
		return err
	}
	if err := checkExchange(exchange); err != nil {
		return err
	}
	if err := checkSymbol(symbol); err != nil {
		return err
	}
	if err := checkTimeframe(tf); err != nil {
		return err
	}
	if err := checkRange(start, end); err != nil {
		return err
	}
	meta := req.Message.RawArg(5)

	candles, err := h.History.GetAllCandles(ctx, symbol, tf, start, end)
	if err != nil {
		return fmt.Errorf("fetch candles %s %s: %w", symbol, tf, err)
	}

	h.Logger.Debug("serving candles",
		"session_id", req.SessionID,
		"symbol", symbol,
		"tf", tf,
		"count", len(candles),
	)

	return req.Reply(protocol.TagCandles,
		exchange, symbol, tf, start, end, meta,
		candlePayload(candles, h.Transform),
	)
}

// getTrades: [exchange, symbol, start, end, meta?]
func (h *handlers) getTrades(ctx context.Context, req *router.Request) error {
	var (
		exchange, symbol string
		start, end       int64
	)
	if err := decodeArgs(req.Message, &exchange, &symbol, &start, &end); err != nil {
		return err
	}
	if err := checkExchange(exchange); err != nil {
		return err
	}
	if err := checkSymbol(symbol); err != nil {
		return err
	}
	if err := checkRange(start, end); err != nil {
		return err
	}
	meta := req.Message.RawArg(4)

	trades, err := h.History.GetAllTrades(ctx, symbol, start, end)
	if err != nil {
		return fmt.Errorf("fetch trades %s: %w", symbol, err)
	}

	h.Logger.Debug("serving trades",
		"session_id", req.SessionID,
		"symbol", symbol,
		"count", len(trades),
	)

	return req.Reply(protocol.TagTrades,
		exchange, symbol, start, end, meta,
		tradePayload(trades, h.Transform),
	)
}
