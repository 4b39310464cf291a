package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/auth"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/metrics"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
)

const closeConcurrency = 64

// Manager owns the upstream proxies, at most one per session.
type Manager interface {
	// Open creates a proxy for the session and starts dialing the venue.
	// The proxy is returned in StateOpening.
	Open(sessionID string) (*Proxy, error)

	// Close closes and removes the session's proxy. No-op if there is none.
	Close(sessionID string)

	// CloseAll closes every proxy and waits for their goroutines to exit.
	// Open fails with ErrManagerClosed afterwards.
	CloseAll()

	// Get returns the session's proxy if one is held.
	Get(sessionID string) (*Proxy, bool)

	// Send writes data to the session's proxy.
	// Fails with ErrNoProxy if none is held and ErrNotConnected before it opens.
	Send(sessionID string, data []byte) error

	// Len returns the number of held proxies.
	Len() int
}

// Sessions resolves a session ID to its client transport.
type Sessions interface {
	Lookup(id string) (session.Transport, bool)
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	creds    *auth.Credentials // nil when auth is not configured
	sessions Sessions
	metrics  *metrics.Metrics
	logger   *slog.Logger

	newLink func(LinkConfig, *slog.Logger) Link

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	proxies map[string]*Proxy // session ID → proxy
	closed  bool
}

// NewManager creates a new Proxy Manager.
func NewManager(cfg ManagerConfig, sessions Sessions, m *metrics.Metrics, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}

	// Without both key and secret proxies stay unauthenticated.
	creds, err := auth.NewCredentials(cfg.APIKey, cfg.APISecret)
	if err != nil {
		logger.Debug("upstream auth disabled", "reason", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &manager{
		cfg:      cfg,
		creds:    creds,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		newLink:  NewLink,
		ctx:      ctx,
		cancel:   cancel,
		proxies:  make(map[string]*Proxy),
	}
}

// Open creates and starts a proxy for sessionID.
func (m *manager) Open(sessionID string) (*Proxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.proxies[sessionID]; ok {
		return nil, fmt.Errorf("open proxy %s: %w", sessionID, ErrProxyExists)
	}

	linkCfg := m.cfg.Link
	linkCfg.URL = m.cfg.WSURL
	linkCfg.Proxy = m.cfg.Agent

	logger := m.logger.With("session_id", sessionID)
	ctx, cancel := context.WithCancel(m.ctx)

	p := &Proxy{
		sessionID: sessionID,
		link:      m.newLink(linkCfg, logger),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.state.Store(int32(StateOpening))

	m.proxies[sessionID] = p
	m.metrics.ActiveProxies.Set(float64(len(m.proxies)))

	m.wg.Add(1)
	go m.run(p)

	return p, nil
}

// Close closes and removes the proxy for sessionID.
func (m *manager) Close(sessionID string) {
	m.mu.Lock()
	p, ok := m.proxies[sessionID]
	if ok {
		delete(m.proxies, sessionID)
		m.metrics.ActiveProxies.Set(float64(len(m.proxies)))
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if p.close() {
		p.logger.Info("upstream proxy closed", "reason", "session closed")
	}
}

// CloseAll closes every proxy exactly once.
func (m *manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	proxies := make([]*Proxy, 0, len(m.proxies))
	for id, p := range m.proxies {
		proxies = append(proxies, p)
		delete(m.proxies, id)
	}
	m.mu.Unlock()

	m.metrics.ActiveProxies.Set(0)

	// A stalled venue holds each close for up to a second, so close in parallel.
	var g errgroup.Group
	g.SetLimit(closeConcurrency)
	for _, p := range proxies {
		g.Go(func() error {
			p.close()
			return nil
		})
	}
	g.Wait()
	m.cancel()
	m.wg.Wait()

	m.logger.Info("proxy manager stopped", "closed", len(proxies))
}

// Get returns the proxy held for sessionID.
func (m *manager) Get(sessionID string) (*Proxy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proxies[sessionID]
	return p, ok
}

// Send forwards a client payload to the session's proxy.
func (m *manager) Send(sessionID string, data []byte) error {
	p, ok := m.Get(sessionID)
	if !ok {
		return ErrNoProxy
	}
	return p.Send(data)
}

// Len returns the number of held proxies.
func (m *manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proxies)
}

// run dials the venue, authenticates, and consumes upstream events in order
// until the proxy closes.
func (m *manager) run(p *Proxy) {
	defer m.wg.Done()

	if err := p.link.Dial(p.ctx); err != nil {
		if p.State() != StateClosed {
			p.logger.Warn("upstream dial failed", "error", err)
		}
		m.remove(p, "dial failed")
		return
	}

	if !p.transition(StateOpening, StateOpen) {
		// Closed while dialing.
		return
	}
	p.logger.Info("upstream proxy open")

	if m.creds != nil {
		if err := m.authenticate(p); err != nil {
			p.logger.Warn("upstream auth send failed", "error", err)
			m.remove(p, "auth send failed")
			return
		}
	}

	for {
		select {
		case <-p.done:
			return

		case <-p.link.Done():
			if err := p.link.Err(); err != nil {
				p.logger.Warn("upstream link dropped", "error", err)
			}
			m.remove(p, "upstream dropped")
			return

		case frame := <-p.link.Frames():
			m.handle(p, frame)
		}
	}
}

// authenticate sends a signed auth event and moves the proxy to Authenticating.
func (m *manager) authenticate(p *Proxy) error {
	if !p.transition(StateOpen, StateAuthenticating) {
		return nil
	}

	data, err := json.Marshal(m.creds.SignWebSocket())
	if err != nil {
		return fmt.Errorf("marshal auth: %w", err)
	}
	if err := p.link.Write(data); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	p.logger.Debug("upstream auth sent")
	return nil
}

// handle forwards one upstream frame and applies auth results.
func (m *manager) handle(p *Proxy, data []byte) {
	m.deliver(p, data)

	ev, ok := parseEvent(data)
	if !ok || ev.Event != EventAuth {
		return
	}

	if ev.Status == AuthStatusOK {
		if p.transition(StateAuthenticating, StateAuthenticated) {
			p.logger.Info("upstream proxy authenticated")
		}
		return
	}

	p.logger.Warn("upstream auth rejected",
		"error", ErrAuthFailed,
		"code", ev.Code,
		"msg", ev.Msg,
	)
	m.remove(p, "auth rejected")
}

// deliver writes an upstream frame to the owning session if it can still
// receive it. A proxy whose owner is gone and which the manager no longer
// holds is closed.
func (m *manager) deliver(p *Proxy, data []byte) {
	if p.State() == StateClosed {
		m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}

	t, ok := m.sessions.Lookup(p.sessionID)
	if !ok {
		if cur, held := m.Get(p.sessionID); !held || cur != p {
			m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultStale).Inc()
			m.remove(p, "owner gone")
			return
		}
		m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}

	if !t.Writable() {
		m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}

	frame, err := protocol.Forward(data)
	if err != nil {
		p.logger.Debug("dropping upstream frame", "error", err)
		m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}

	if err := t.Send(frame); err != nil {
		p.logger.Debug("forward to client failed", "error", err)
		m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}

	m.metrics.ProxyMessagesTotal.WithLabelValues(metrics.ResultForwarded).Inc()
}

// remove drops p from the map if it is still the held proxy, then closes it.
func (m *manager) remove(p *Proxy, reason string) {
	m.mu.Lock()
	if cur, ok := m.proxies[p.sessionID]; ok && cur == p {
		delete(m.proxies, p.sessionID)
		m.metrics.ActiveProxies.Set(float64(len(m.proxies)))
	}
	m.mu.Unlock()

	if p.close() {
		p.logger.Info("upstream proxy closed", "reason", reason)
	}
}
