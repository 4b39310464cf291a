package router

import (
	"context"
	"time"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
)

// Request is one inbound command with the context of the session that sent it.
type Request struct {
	SessionID string
	Transport session.Transport
	Command   string
	Message   protocol.Message
}

// Reply sends an envelope back to the originating client.
func (r *Request) Reply(tag string, payload ...any) error {
	return protocol.Send(r.Transport, tag, payload...)
}

// Handler processes one command. Returning a *protocol.Error sends that
// code to the client; any other error is reported as internal.
type Handler interface {
	Handle(ctx context.Context, req *Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) error

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// Table maps command names to handlers. It is built once and never mutated.
type Table map[string]Handler

// Config holds configuration for the Command Dispatcher.
type Config struct {
	HandlerTimeout time.Duration // Upper bound on a single handler run
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 2 * time.Minute,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64
	ParseErrors      int64
	UnknownCommands  int64
	HandlersStarted  int64
	HandlerErrors    int64
	HandlerPanics    int64
}
