// Package router implements the Command Dispatcher.
//
// Each inbound client frame is parsed as [command, ...args] and routed by
// exact name through a static Table. Handlers run in their own goroutine;
// returned errors and panics become error envelopes for the originating
// client only.
package router
