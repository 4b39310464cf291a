package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExchangeBitfinex is the only venue the server talks to.
const ExchangeBitfinex = "bitfinex"

// -----------------------------------------------------------------------------
// Reference Data
// -----------------------------------------------------------------------------

// Market is a tradeable pair on the venue.
type Market struct {
	Exchange string `json:"exchange"` // Always "bitfinex"
	Symbol   string `json:"symbol"`   // Trading symbol, e.g. "tBTCUSD"
	Pair     string `json:"pair"`     // Venue pair, e.g. "BTCUSD" or "TESTBTC:TESTUSD"
	Base     string `json:"base"`     // e.g. "BTC"
	Quote    string `json:"quote"`    // e.g. "USD"
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Candle is one OHLCV bucket.
type Candle struct {
	MTS    int64   `json:"mts"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
}

// Array returns the candle in the venue's raw field order.
func (c Candle) Array() []any {
	return []any{c.MTS, c.Open, c.Close, c.High, c.Low, c.Volume}
}

// Trade is one public trade.
type Trade struct {
	ID     int64   `json:"id"`
	MTS    int64   `json:"mts"`
	Amount float64 `json:"amount"` // Positive = buy, negative = sell
	Price  float64 `json:"price"`
}

// Array returns the trade in the venue's raw field order.
func (t Trade) Array() []any {
	return []any{t.ID, t.MTS, t.Amount, t.Price}
}

// -----------------------------------------------------------------------------
// Backtests
// -----------------------------------------------------------------------------

// Backtest is a client-submitted backtest result.
// Strategy and Results are opaque to the server and stored verbatim.
type Backtest struct {
	ID        uuid.UUID       `json:"id"`
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	TF        string          `json:"tf"`
	From      int64           `json:"from"` // ms since epoch
	To        int64           `json:"to"`   // ms since epoch
	Strategy  json.RawMessage `json:"strategy,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
