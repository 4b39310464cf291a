// Package protocol defines the client wire format.
//
// Inbound frames are JSON arrays whose first element is a command name:
//
//	["get.candles", "bitfinex", "tBTCUSD", "1m", 1700000000000, 1700003600000]
//
// Every outbound frame is an envelope, a JSON array whose first element is a
// tag and whose remaining elements are the payload:
//
//	["connected"]
//	["data.markets", [...]]
//	["error", {"code": "unknown_command", "message": "unknown command: foo"}]
//	["bfx", <raw upstream frame>]
package protocol
