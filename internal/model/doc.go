// Package model defines shared data types used across the data server.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch (the venue's MTS)
//   - Symbols: venue trading symbols with the "t" prefix (e.g., "tBTCUSD")
//   - Prices and amounts: float64 as delivered by the venue
//   - IDs: uuid.UUID for stored backtests
package model
