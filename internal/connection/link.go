package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Link is one WebSocket connection to the venue. Inbound frames arrive on
// Frames until Done is closed, after which Err reports the cause.
type Link interface {
	Dial(ctx context.Context) error

	// Write sends one text frame. Safe for concurrent use.
	Write(frame []byte) error

	Frames() <-chan []byte
	Done() <-chan struct{}

	// Err is nil while the link is up and after a local Close.
	Err() error

	Close() error
}

type link struct {
	cfg    LinkConfig
	logger *slog.Logger

	frames   chan []byte
	done     chan struct{}
	lastSeen atomic.Int64 // unix nanos of the last inbound frame or pong

	writeMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	err    error
	closed bool
}

// NewLink returns an undialed link.
func NewLink(cfg LinkConfig, logger *slog.Logger) Link {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &link{
		cfg:    cfg,
		logger: logger,
		frames: make(chan []byte, cfg.BufferSize),
		done:   make(chan struct{}),
	}
}

func (l *link) Dial(ctx context.Context) error {
	d := websocket.Dialer{HandshakeTimeout: l.cfg.HandshakeTimeout}
	if l.cfg.Proxy != nil {
		d.Proxy = http.ProxyURL(l.cfg.Proxy)
	}

	conn, _, err := d.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.cfg.URL, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return ErrLinkClosed
	}
	l.conn = conn
	l.mu.Unlock()

	l.seen()
	conn.SetPongHandler(func(string) error {
		l.seen()
		return nil
	})

	go l.readLoop(conn)
	go l.keepalive(conn)

	l.logger.Debug("upstream link up", "url", l.cfg.URL)
	return nil
}

func (l *link) Write(frame []byte) error {
	l.mu.Lock()
	conn, closed := l.conn, l.closed
	l.mu.Unlock()
	if conn == nil || closed {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write upstream: %w", err)
	}
	return nil
}

func (l *link) Frames() <-chan []byte { return l.frames }

func (l *link) Done() <-chan struct{} { return l.done }

func (l *link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close says goodbye to the venue and tears the link down. Idempotent.
func (l *link) Close() error {
	l.mu.Lock()
	conn, closed := l.conn, l.closed
	l.mu.Unlock()

	if conn != nil && !closed {
		bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(time.Second))
	}
	l.shut(nil)
	return nil
}

// shut records cause, closes the socket and signals Done. Only the first
// call has any effect.
func (l *link) shut(cause error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.err = cause
	conn := l.conn
	l.mu.Unlock()

	close(l.done)
	if conn != nil {
		conn.Close()
	}
}

func (l *link) seen() {
	l.lastSeen.Store(time.Now().UnixNano())
}

func (l *link) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.shut(fmt.Errorf("read upstream: %w", err))
			return
		}
		l.seen()

		// Event frames carry auth results and are never dropped.
		if isObject(data) {
			select {
			case l.frames <- data:
			case <-l.done:
				return
			}
			continue
		}

		select {
		case l.frames <- data:
		case <-l.done:
			return
		default:
			l.logger.Warn("upstream frame buffer full, dropping frame", "bytes", len(data))
		}
	}
}

// isObject reports whether frame is a JSON object rather than channel data.
func isObject(frame []byte) bool {
	for _, b := range frame {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b == '{'
	}
	return false
}

// keepalive pings on every interval and shuts the link once the venue has
// been silent for longer than PingTimeout.
func (l *link) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}

		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(l.cfg.WriteTimeout)); err != nil {
			l.logger.Debug("upstream ping failed", "error", err)
		}

		idle := time.Since(time.Unix(0, l.lastSeen.Load()))
		if idle > l.cfg.PingTimeout {
			l.logger.Warn("upstream link silent", "idle", idle.Round(time.Millisecond))
			l.shut(ErrLinkStale)
			return
		}
	}
}
