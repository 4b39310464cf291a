package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/metrics"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/protocol"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
)

// unknownLabel keeps the commands_total label set bounded.
const unknownLabel = "unknown"

// Dispatcher routes inbound client frames to command handlers.
type Dispatcher interface {
	// Dispatch parses data and starts its handler. Parse and lookup failures
	// are answered with an error envelope before Dispatch returns.
	Dispatch(ctx context.Context, sessionID string, t session.Transport, data []byte)

	// Wait blocks until every started handler has returned or ctx is done.
	// Frames dispatched after Wait is called are dropped.
	Wait(ctx context.Context) error

	// Stats returns current dispatcher statistics.
	Stats() Stats
}

// dispatcher is the internal implementation.
type dispatcher struct {
	cfg     Config
	table   Table
	metrics *metrics.Metrics
	logger  *slog.Logger

	// Lifecycle
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	// Stats
	received    atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
	started     atomic.Int64
	failed      atomic.Int64
	panics      atomic.Int64
}

// NewDispatcher creates a new Command Dispatcher.
func NewDispatcher(cfg Config, table Table, m *metrics.Metrics, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultConfig().HandlerTimeout
	}

	return &dispatcher{
		cfg:     cfg,
		table:   table,
		metrics: m,
		logger:  logger,
	}
}

// Dispatch routes a single frame.
func (d *dispatcher) Dispatch(ctx context.Context, sessionID string, t session.Transport, data []byte) {
	d.received.Add(1)
	logger := d.logger.With("session_id", sessionID)

	msg, err := protocol.Parse(data)
	if err != nil {
		d.parseErrors.Add(1)
		logger.Debug("rejecting frame", "error", err)
		d.reply(logger, t, protocol.ClientError(err))
		return
	}

	name, _ := msg.Command()
	h, ok := d.table[name]
	if !ok {
		d.unknown.Add(1)
		d.metrics.CommandsTotal.WithLabelValues(unknownLabel, metrics.StatusError).Inc()
		logger.Debug("unknown command", "command", name)
		d.reply(logger, t, protocol.UnknownCommand(name))
		return
	}

	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		logger.Debug("dispatcher stopped, dropping command", "command", name)
		return
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	d.started.Add(1)
	req := &Request{
		SessionID: sessionID,
		Transport: t,
		Command:   name,
		Message:   msg,
	}
	go d.run(ctx, h, req, logger.With("command", name))
}

// run executes one handler and reports its outcome to the client.
func (d *dispatcher) run(ctx context.Context, h Handler, req *Request, logger *slog.Logger) {
	defer d.wg.Done()

	start := time.Now()
	status := metrics.StatusOK

	defer func() {
		if r := recover(); r != nil {
			status = metrics.StatusPanic
			d.panics.Add(1)
			logger.Error("command handler panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			d.reply(logger, req.Transport, protocol.ErrInternal)
		}
		d.metrics.CommandsTotal.WithLabelValues(req.Command, status).Inc()
		d.metrics.CommandDuration.WithLabelValues(req.Command).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	defer cancel()

	if err := h.Handle(ctx, req); err != nil {
		status = metrics.StatusError
		d.failed.Add(1)

		cerr := protocol.ClientError(err)
		if cerr.Code == protocol.CodeInternal {
			logger.Error("command failed", "error", err)
		} else {
			logger.Debug("command rejected", "error", err)
		}
		d.reply(logger, req.Transport, cerr)
	}
}

func (d *dispatcher) reply(logger *slog.Logger, t session.Transport, e *protocol.Error) {
	if err := protocol.SendError(t, e); err != nil {
		logger.Debug("failed to send error envelope", "error", err)
	}
}

// Wait waits for in-flight handlers.
func (d *dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("timed out waiting for command handlers", "started", d.started.Load())
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (d *dispatcher) Stats() Stats {
	return Stats{
		MessagesReceived: d.received.Load(),
		ParseErrors:      d.parseErrors.Load(),
		UnknownCommands:  d.unknown.Load(),
		HandlersStarted:  d.started.Load(),
		HandlerErrors:    d.failed.Load(),
		HandlerPanics:    d.panics.Load(),
	}
}
