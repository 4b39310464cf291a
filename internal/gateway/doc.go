// Package gateway accepts client WebSocket connections and wires each one
// to the session registry, the command dispatcher and, when enabled, a
// dedicated upstream proxy.
//
// Connection flow:
//
//	upgrade → register session → open proxy → ["connected"] → ["data.markets", ...]
//	        → read loop (one goroutine per client) → dispatcher
//
// When the read loop ends the session is unregistered and its proxy closed.
package gateway
