// Package connection implements the Upstream Proxy Manager component.
//
// The Proxy Manager:
//   - Opens at most one Bitfinex WebSocket connection per client session
//   - Authenticates the connection when API credentials are configured
//   - Tracks each proxy through Opening, Open, Authenticating, Authenticated and Closed
//   - Forwards upstream pushes to the owning session while it is still connected
//   - Closes proxies whose owner has gone away
package connection
