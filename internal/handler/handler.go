package handler

import (
	"context"
	"log/slog"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
)

// Command names.
const (
	CmdGetMarkets = "get.markets"
	CmdGetCandles = "get.candles"
	CmdGetTrades  = "get.trades"
	CmdExecBT     = "exec.bt"
	CmdSubmitBT   = "submit.bt"
	CmdGetBTs     = "get.bts"
	CmdProxy      = "bfx"
)

// Markets provides the cached market list.
type Markets interface {
	Markets() []model.Market
}

// History fetches historical candles and trades from the venue.
type History interface {
	GetAllCandles(ctx context.Context, symbol, tf string, start, end int64) ([]model.Candle, error)
	GetAllTrades(ctx context.Context, symbol string, start, end int64) ([]model.Trade, error)
}

// Backtests stores submitted backtests.
type Backtests interface {
	Save(ctx context.Context, bt model.Backtest) (model.Backtest, error)
	List(ctx context.Context, limit int) ([]model.Backtest, error)
}

// Proxies forwards client payloads to upstream proxies.
type Proxies interface {
	Send(sessionID string, data []byte) error
}

// Deps are the collaborators shared by all handlers.
// Backtests and Proxies are nil when the feature is disabled.
type Deps struct {
	Markets   Markets
	History   History
	Backtests Backtests
	Proxies   Proxies
	Transform bool // Send candles and trades as objects instead of arrays
	Logger    *slog.Logger
}

// handlers binds Deps to the command implementations.
type handlers struct {
	Deps
}

// Table builds the dispatch table.
func Table(d Deps) router.Table {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{Deps: d}

	return router.Table{
		CmdGetMarkets: router.HandlerFunc(h.getMarkets),
		CmdGetCandles: router.HandlerFunc(h.getCandles),
		CmdGetTrades:  router.HandlerFunc(h.getTrades),
		CmdExecBT:     router.HandlerFunc(h.execBacktest),
		CmdSubmitBT:   router.HandlerFunc(h.submitBacktest),
		CmdGetBTs:     router.HandlerFunc(h.getBacktests),
		CmdProxy:      router.HandlerFunc(h.proxy),
	}
}
