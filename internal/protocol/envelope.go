package protocol

import (
	"encoding/json"
	"fmt"
)

// Reserved envelope tags.
const (
	TagConnected = "connected"
	TagError     = "error"
	TagProxy     = "bfx"
)

// Data tags used by command responses.
const (
	TagMarkets  = "data.markets"
	TagCandles  = "data.candles"
	TagTrades   = "data.trades"
	TagBacktest = "data.bt"
	TagBTs      = "data.bts"
	TagBTStart  = "bt.start"
	TagBTCandle = "bt.candle"
	TagBTTrade  = "bt.trade"
	TagBTEnd    = "bt.end"
)

// Writer is the subset of a client transport needed to send envelopes.
type Writer interface {
	Send(data []byte) error
	Writable() bool
}

// Encode builds a [tag, ...payload] frame.
func Encode(tag string, payload ...any) ([]byte, error) {
	frame := make([]any, 0, len(payload)+1)
	frame = append(frame, tag)
	frame = append(frame, payload...)

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", tag, err)
	}
	return data, nil
}

// Send encodes an envelope and writes it to w.
// Frames for a transport that is no longer writable are dropped without error.
func Send(w Writer, tag string, payload ...any) error {
	if !w.Writable() {
		return nil
	}

	data, err := Encode(tag, payload...)
	if err != nil {
		return err
	}
	return w.Send(data)
}

// SendError writes an error envelope.
func SendError(w Writer, e *Error) error {
	return Send(w, TagError, e)
}

// Forward wraps a raw upstream frame in a proxy envelope.
func Forward(raw []byte) ([]byte, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("forward: upstream frame is not valid JSON")
	}
	return Encode(TagProxy, json.RawMessage(raw))
}
