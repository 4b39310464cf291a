package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/connection"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
)

// proxy forwards a raw payload to the session's upstream connection: [payload]
func (h *handlers) proxy(ctx context.Context, req *router.Request) error {
	if n := req.Message.NumArgs(); n != 1 {
		return protocol.BadRequest("bfx takes exactly 1 argument, got %d", n)
	}
	payload := req.Message.RawArg(0)
	if h.Proxies == nil {
		return protocol.ErrProxyUnavailable
	}

	err := h.Proxies.Send(req.SessionID, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, connection.ErrNoProxy), errors.Is(err, connection.ErrNotConnected):
		return protocol.ErrProxyUnavailable
	default:
		return fmt.Errorf("forward to upstream: %w", err)
	}
}
