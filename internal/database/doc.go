// Package database provides PostgreSQL connection pool management and
// storage for client-submitted backtests.
//
// Storage is optional: the server runs without a database, and the backtest
// commands report storage_unavailable.
package database
