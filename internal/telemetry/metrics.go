// Package telemetry provides the Prometheus metrics sink and the optional
// localhost metrics listener.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the proxy.
// Pass to components that need to record metrics.
type Metrics struct {
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	TruncationsTotal  prometheus.Counter
	ProcessorRuns     *prometheus.CounterVec
	CacheEntries      prometheus.Gauge
	CacheBytes        prometheus.Gauge
	CacheLookupsTotal *prometheus.CounterVec
	UpstreamsReady    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcplens",
				Name:      "tool_calls_total",
				Help:      "Total tool calls dispatched, by upstream and outcome",
			},
			[]string{"upstream", "status"}, // status=ok/error
		),
		ToolCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mcplens",
				Name:      "tool_call_duration_seconds",
				Help:      "Upstream tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"upstream"},
		),
		TruncationsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcplens",
				Name:      "truncations_total",
				Help:      "Responses truncated and cached by the interceptor",
			},
		),
		ProcessorRuns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcplens",
				Name:      "processor_runs_total",
				Help:      "Processor pipeline runs, by proxy tool",
			},
			[]string{"tool"},
		),
		CacheEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcplens",
				Name:      "cache_entries",
				Help:      "Live cache entries across all agents",
			},
		),
		CacheBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcplens",
				Name:      "cache_bytes",
				Help:      "Live cached bytes across all agents",
			},
		),
		CacheLookupsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcplens",
				Name:      "cache_lookups_total",
				Help:      "Cache lookups, by result",
			},
			[]string{"result"}, // result=hit/miss/expired
		),
		UpstreamsReady: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcplens",
				Name:      "upstreams_ready",
				Help:      "Upstream sessions currently in the Ready state",
			},
		),
	}
}
