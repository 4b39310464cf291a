// Package session implements the Session Registry.
//
// The registry is pure bookkeeping: it maps session IDs to the client
// transport that owns them and performs no I/O of its own. A lookup for an
// unknown ID reports absence, which callers treat as "client gone".
package session
