// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connected client sessions and open upstream proxies
//   - Command throughput by command name and outcome
//   - Upstream push delivery (forwarded, dropped, stale)
//   - Command handler latency
package metrics
