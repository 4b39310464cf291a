package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/connection"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/handler"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/metrics"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
)

// ErrServerClosed is returned by Start after Stop.
var ErrServerClosed = errors.New("gateway closed")

// Config holds gateway configuration.
type Config struct {
	Port         int           // Listen port, 0 picks a free one
	WriteTimeout time.Duration // Per-frame write deadline
	ReadLimit    int64         // Max inbound frame size in bytes
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:         8899,
		WriteTimeout: 5 * time.Second,
		ReadLimit:    1 << 20,
	}
}

// Deps are the components a Server wires together.
// Proxies is nil when upstream proxying is disabled.
type Deps struct {
	Sessions   *session.Registry
	Proxies    connection.Manager
	Dispatcher router.Dispatcher
	Markets    handler.Markets
}

// Server is the client-facing WebSocket endpoint.
type Server struct {
	cfg        Config
	sessions   *session.Registry
	proxies    connection.Manager
	dispatcher router.Dispatcher
	markets    handler.Markets
	metrics    *metrics.Metrics
	logger     *slog.Logger

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// ctx is handed to command handlers and is cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	closed   bool
}

// NewServer creates a gateway. Call Start to listen, or mount Handler.
func NewServer(cfg Config, deps Deps, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultConfig().ReadLimit
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		sessions:   deps.Sessions,
		proxies:    deps.Proxies,
		dispatcher: deps.Dispatcher,
		markets:    deps.Markets,
		metrics:    m,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.mux.HandleFunc("/", s.handleUpgrade)

	return s
}

// Handler returns the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}

	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway listener failed", "error", err)
		}
	}()

	s.logger.Info("gateway started",
		"addr", ln.Addr().String(),
		"proxy", s.proxies != nil,
	)

	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener, every proxy and every client, cancels in-flight
// command handlers and waits for them to return until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	httpSrv := s.httpSrv
	s.mu.Unlock()

	var errs []error

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown listener: %w", err))
		}
	}

	if s.proxies != nil {
		s.proxies.CloseAll()
	}

	clients := s.sessions.Sessions()
	for _, sess := range clients {
		sess.Transport.Close()
	}
	// No client can receive a reply now, so in-flight handlers are cut short.
	s.cancel()

	if err := s.waitConnections(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for clients: %w", err))
	}
	if err := s.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for handlers: %w", err))
	}

	s.logger.Info("gateway stopped", "clients", len(clients))

	return errors.Join(errs...)
}

func (s *Server) waitConnections(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleUpgrade accepts one client and serves it until it disconnects.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)

	id := session.NewID()
	t := newTransport(conn, s.cfg.WriteTimeout)

	if _, err := s.sessions.Register(id, t); err != nil {
		s.logger.Error("failed to register session", "session_id", id, "error", err)
		t.Close()
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))

	logger := s.logger.With("session_id", id)

	// Stop may have snapshotted the registry before this session was added.
	if s.isClosed() {
		s.closeSession(id, t)
		return
	}

	logger.Info("client connected", "remote", r.RemoteAddr)

	start := time.Now()
	defer func() {
		s.closeSession(id, t)
		logger.Info("client disconnected", "duration", time.Since(start).Round(time.Millisecond))
	}()

	if err := protocol.Send(t, protocol.TagConnected); err != nil {
		logger.Debug("failed to send connected", "error", err)
		return
	}
	if s.markets != nil {
		if err := protocol.Send(t, protocol.TagMarkets, s.markets.Markets()); err != nil {
			logger.Debug("failed to send markets", "error", err)
			return
		}
	}

	// Opened only after the connect sequence so upstream frames follow it.
	if s.proxies != nil {
		if _, err := s.proxies.Open(id); err != nil {
			logger.Warn("failed to open upstream proxy", "error", err)
		}
	}

	s.readLoop(id, conn, t, logger)
}

// readLoop hands each inbound frame to the dispatcher in arrival order.
func (s *Server) readLoop(id string, conn *websocket.Conn, t *wsTransport, logger *slog.Logger) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && t.Writable() {
				logger.Debug("client read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}

		s.dispatcher.Dispatch(s.ctx, id, t, data)
	}
}

// closeSession tears down a client: no further writes, no registry entry,
// no upstream proxy.
func (s *Server) closeSession(id string, t *wsTransport) {
	t.Close()
	s.sessions.Unregister(id)
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))

	if s.proxies != nil {
		s.proxies.Close(id)
	}
}
