package api

import (
	"fmt"
	"strings"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// candleFromRow maps [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME] onto a Candle.
func candleFromRow(row rawRow) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("candle row has %d fields, want 6", len(row))
	}
	return model.Candle{
		MTS:    int64(row[0]),
		Open:   row[1],
		Close:  row[2],
		High:   row[3],
		Low:    row[4],
		Volume: row[5],
	}, nil
}

// tradeFromRow maps [ID, MTS, AMOUNT, PRICE] onto a Trade.
func tradeFromRow(row rawRow) (model.Trade, error) {
	if len(row) < 4 {
		return model.Trade{}, fmt.Errorf("trade row has %d fields, want 4", len(row))
	}
	return model.Trade{
		ID:     int64(row[0]),
		MTS:    int64(row[1]),
		Amount: row[2],
		Price:  row[3],
	}, nil
}

// MarketFromPair builds a Market from a venue pair name.
// Six-letter pairs split 3/3 ("BTCUSD"); longer pairs use a colon ("TESTBTC:TESTUSD").
func MarketFromPair(pair string) (model.Market, bool) {
	pair = strings.ToUpper(strings.TrimSpace(pair))

	var base, quote string
	switch {
	case strings.Contains(pair, ":"):
		parts := strings.SplitN(pair, ":", 2)
		base, quote = parts[0], parts[1]
	case len(pair) == 6:
		base, quote = pair[:3], pair[3:]
	default:
		return model.Market{}, false
	}

	if base == "" || quote == "" {
		return model.Market{}, false
	}

	return model.Market{
		Exchange: model.ExchangeBitfinex,
		Symbol:   "t" + pair,
		Pair:     pair,
		Base:     base,
		Quote:    quote,
	}, true
}
