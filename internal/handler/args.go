package handler

import (
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/api"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
)

// decodeArgs decodes leading arguments into dst in order.
func decodeArgs(msg protocol.Message, dst ...any) error {
	for i, v := range dst {
		if err := msg.Arg(i, v); err != nil {
			return err
		}
	}
	return nil
}

func checkExchange(exchange string) error {
	if exchange != model.ExchangeBitfinex {
		return protocol.BadRequest("unsupported exchange: %s", exchange)
	}
	return nil
}

func checkSymbol(symbol string) error {
	if symbol == "" {
		return protocol.BadRequest("symbol is required")
	}
	return nil
}

func checkTimeframe(tf string) error {
	if !api.ValidTimeframe(tf) {
		return protocol.BadRequest("unsupported timeframe: %s", tf)
	}
	return nil
}

func checkRange(start, end int64) error {
	if start < 0 || end < start {
		return protocol.BadRequest("invalid time range: %d to %d", start, end)
	}
	return nil
}

// candlePayload renders candles as objects or as the venue's raw arrays.
func candlePayload(candles []model.Candle, transform bool) []any {
	out := make([]any, len(candles))
	for i, c := range candles {
		if transform {
			out[i] = c
		} else {
			out[i] = c.Array()
		}
	}
	return out
}

// tradePayload renders trades as objects or as the venue's raw arrays.
func tradePayload(trades []model.Trade, transform bool) []any {
	out := make([]any, len(trades))
	for i, t := range trades {
		if transform {
			out[i] = t
		} else {
			out[i] = t.Array()
		}
	}
	return out
}
