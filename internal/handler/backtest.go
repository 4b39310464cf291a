package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/database"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
)

// execBacktest streams historical data for a client-side backtest:
// [exchange, start, end, symbol, tf, includeCandles?, includeTrades?, meta?]
//
// Frames are bt.start, then candles and trades merged by timestamp
// (a candle before a trade at the same timestamp), then bt.end.
func (h *handlers) execBacktest(ctx context.Context, req *router.Request) error {
	var (
		exchange, symbol, tf string
		start, end           int64
	)
	if err := decodeArgs(req.Message, &exchange, &start, &end, &symbol, &tf); err != nil {
		return err
	}

	// Both streams are included unless explicitly disabled.
	includeCandles, includeTrades := true, true
	if _, err := req.Message.OptArg(5, &includeCandles); err != nil {
		return err
	}
	if _, err := req.Message.OptArg(6, &includeTrades); err != nil {
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
	meta := req.Message.RawArg(7)

	var (
		candles []model.Candle
		trades  []model.Trade
		err     error
	)
	if includeCandles {
		candles, err = h.History.GetAllCandles(ctx, symbol, tf, start, end)
		if err != nil {
			return fmt.Errorf("fetch backtest candles: %w", err)
		}
	}

	if includeTrades {
		trades, err = h.History.GetAllTrades(ctx, symbol, start, end)
		if err != nil {
			return fmt.Errorf("fetch backtest trades: %w", err)
		}
	}

	logger := h.Logger.With("session_id", req.SessionID, "symbol", symbol, "tf", tf)
	logger.Info("starting backtest stream", "candles", len(candles), "trades", len(trades))

	if err := req.Reply(protocol.TagBTStart,
		exchange, symbol, tf, start, end, meta, len(candles), len(trades),
	); err != nil {
		return err
	}

	ci, ti := 0, 0
	for ci < len(candles) || ti < len(trades) {
		// Stop once the client is gone or the handler deadline passes.
		if !req.Transport.Writable() {
			logger.Debug("client gone, stopping backtest stream")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("backtest stream: %w", err)
		}

		if ti >= len(trades) || (ci < len(candles) && candles[ci].MTS <= trades[ti].MTS) {
			c := candles[ci]
			ci++
			if err := req.Reply(protocol.TagBTCandle, exchange, symbol, tf, h.candle(c)); err != nil {
				return err
			}
			continue
		}

		t := trades[ti]
		ti++
		if err := req.Reply(protocol.TagBTTrade, exchange, symbol, h.trade(t)); err != nil {
			return err
		}
	}

	return req.Reply(protocol.TagBTEnd, exchange, symbol, tf, start, end, meta)
}

func (h *handlers) candle(c model.Candle) any {
	if h.Transform {
		return c
	}
	return c.Array()
}

func (h *handlers) trade(t model.Trade) any {
	if h.Transform {
		return t
	}
	return t.Array()
}

// backtestSubmission is the client's submit.bt payload.
type backtestSubmission struct {
	ID       string          `json:"id,omitempty"`
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	TF       string          `json:"tf"`
	From     int64           `json:"from"`
	To       int64           `json:"to"`
	Strategy json.RawMessage `json:"strategy,omitempty"`
	Results  json.RawMessage `json:"results,omitempty"`
}

// submitBacktest stores a finished backtest: [backtest]
func (h *handlers) submitBacktest(ctx context.Context, req *router.Request) error {
	if h.Backtests == nil {
		return protocol.ErrStorageUnavailable
	}

	var sub backtestSubmission
	if err := req.Message.Arg(0, &sub); err != nil {
		return err
	}
	if err := checkExchange(sub.Exchange); err != nil {
		return err
	}
	if err := checkSymbol(sub.Symbol); err != nil {
		return err
	}
	if err := checkTimeframe(sub.TF); err != nil {
		return err
	}
	if err := checkRange(sub.From, sub.To); err != nil {
		return err
	}

	bt := model.Backtest{
		Exchange: sub.Exchange,
		Symbol:   sub.Symbol,
		TF:       sub.TF,
		From:     sub.From,
		To:       sub.To,
		Strategy: sub.Strategy,
		Results:  sub.Results,
	}
	if sub.ID != "" {
		id, err := uuid.Parse(sub.ID)
		if err != nil {
			return protocol.BadRequest("invalid backtest id: %s", sub.ID)
		}
		bt.ID = id
	}

	saved, err := h.Backtests.Save(ctx, bt)
	if errors.Is(err, database.ErrBacktestExists) {
		return protocol.BadRequest("backtest %s already exists", bt.ID)
	}
	if err != nil {
		return fmt.Errorf("save backtest: %w", err)
	}

	return req.Reply(protocol.TagBacktest, saved)
}

// getBacktests lists stored backtests, newest first.
func (h *handlers) getBacktests(ctx context.Context, req *router.Request) error {
	if h.Backtests == nil {
		return protocol.ErrStorageUnavailable
	}

	list, err := h.Backtests.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("list backtests: %w", err)
	}
	if list == nil {
		list = []model.Backtest{}
	}

	return req.Reply(protocol.TagBTs, list)
}
