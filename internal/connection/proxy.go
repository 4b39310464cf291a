package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Proxy is one session's dedicated upstream connection.
type Proxy struct {
	sessionID string
	link      Link
	logger    *slog.Logger

	state     atomic.Int32
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// SessionID returns the ID of the owning session.
func (p *Proxy) SessionID() string {
	return p.sessionID
}

// State returns the current lifecycle state.
func (p *Proxy) State() State {
	return State(p.state.Load())
}

// Done is closed once the proxy reaches StateClosed.
func (p *Proxy) Done() <-chan struct{} {
	return p.done
}

// Send writes a client payload to the venue.
// Fails with ErrNotConnected until the dial completes and after close.
func (p *Proxy) Send(data []byte) error {
	switch p.State() {
	case StateOpen, StateAuthenticating, StateAuthenticated:
		return p.link.Write(data)
	default:
		return ErrNotConnected
	}
}

// transition moves from one state to another. Closed is terminal, so a
// transition never overwrites it.
func (p *Proxy) transition(from, to State) bool {
	return p.state.CompareAndSwap(int32(from), int32(to))
}

// close moves the proxy to Closed and releases its upstream connection.
// It reports whether this call performed the close.
func (p *Proxy) close() bool {
	closed := false
	p.closeOnce.Do(func() {
		p.state.Store(int32(StateClosed))
		p.cancel()
		if err := p.link.Close(); err != nil {
			p.logger.Debug("upstream close error", "error", err)
		}
		close(p.done)
		closed = true
	})
	return closed
}
