package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpillora/requestlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/config"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/router"
)

type sessionCounter interface {
	Len() int
}

type marketLister interface {
	Markets() []model.Market
	LastSync() time.Time
}

type commandStats interface {
	Stats() router.Stats
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports gateway state. proxies and db are nil when the
// feature is disabled.
type healthHandler struct {
	sessions sessionCounter
	proxies  sessionCounter
	markets  marketLister
	commands commandStats
	db       pinger
	logger   *slog.Logger
}

type healthReport struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := healthReport{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	report.Components["sessions"] = h.sessions.Len()

	if h.proxies != nil {
		report.Components["proxies"] = h.proxies.Len()
	}

	if h.commands != nil {
		st := h.commands.Stats()
		report.Components["commands"] = map[string]int64{
			"received": st.MessagesReceived,
			"started":  st.HandlersStarted,
			"failed":   st.HandlerErrors,
			"panics":   st.HandlerPanics,
			"rejected": st.ParseErrors + st.UnknownCommands,
		}
	}

	markets := h.markets.Markets()
	report.Components["markets"] = map[string]any{
		"count":     len(markets),
		"last_sync": h.markets.LastSync(),
	}
	if len(markets) == 0 {
		report.Status = "degraded"
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			report.Components["postgres"] = "connected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if report.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Debug("failed to write health report", "error", err)
	}
}

// newSideServer serves /health and the Prometheus endpoint. Requests are
// logged when debug is set.
func newSideServer(cfg config.MetricsConfig, reg *prometheus.Registry, health http.Handler, debug bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	var h http.Handler = mux
	if debug {
		h = requestlog.Wrap(h)
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
