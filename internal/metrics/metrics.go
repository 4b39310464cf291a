package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bfx_hf_data"

// Command outcomes for CommandsTotal.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusPanic = "panic"
)

// Upstream push outcomes for ProxyMessagesTotal.
const (
	ResultForwarded = "forwarded"
	ResultDropped   = "dropped"
	ResultStale     = "stale"
)

// Metrics holds all Prometheus metrics for the data server.
// Pass to components that need to record metrics.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	ActiveProxies      prometheus.Gauge
	CommandsTotal      *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	ProxyMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of connected client sessions",
			},
		),
		ActiveProxies: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_proxies",
				Help:      "Number of open upstream proxy connections",
			},
		),
		CommandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total client commands processed",
			},
			[]string{"command", "status"}, // status=ok/error/panic
		),
		CommandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Command handler duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		ProxyMessagesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_messages_total",
				Help:      "Total upstream push messages by delivery result",
			},
			[]string{"result"}, // result=forwarded/dropped/stale
		),
	}
}

// Discard returns metrics registered with a private registry.
// Used when the caller does not export metrics, e.g. in tests.
func Discard() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
