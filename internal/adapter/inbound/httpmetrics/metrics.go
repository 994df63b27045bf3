// Package httpmetrics provides Prometheus instrumentation and a health
// endpoint shared across the HTTP-based transports (streamable-HTTP and
// legacy SSE).
package httpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics recorded by the HTTP transports.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	OutboundPending prometheus.Gauge
	EventsAppended  *prometheus.CounterVec
}

// NewMetrics creates and registers every metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpserver",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled by the MCP transports",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mcpserver",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpserver",
				Name:      "active_sessions",
				Help:      "Number of sessions currently tracked by the session manager",
			},
		),
		OutboundPending: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpserver",
				Name:      "outbound_requests_pending",
				Help:      "Number of server-initiated requests awaiting a client response",
			},
		),
		EventsAppended: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpserver",
				Name:      "event_store_appends_total",
				Help:      "Total events appended to per-session SSE event stores",
			},
			[]string{"transport"},
		),
	}
}
