// Package api provides the Bitfinex v2 public REST client used by command handlers.
//
// REST endpoint:
//   - Production: https://api-pub.bitfinex.com/v2
//
// Endpoints used:
//   - /conf/pub:list:pair:exchange (market list)
//   - /candles/trade:{tf}:{symbol}/hist
//   - /trades/{symbol}/hist
//
// The venue returns rows as positional arrays; convert.go maps them onto model types.
package api
