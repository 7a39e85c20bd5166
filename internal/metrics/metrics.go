// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "mindmup"

// Fetch cache metrics.
var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Fetch cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "expired"
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Fetch cache evictions by reason",
		},
		[]string{"reason"}, // "expired" / "capacity" / "invalidated"
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by the fetch cache",
		},
	)
)

// Fetch pipeline metrics.
var (
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Document download duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	FetchesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetches_in_flight",
			Help:      "Downloads currently holding a worker slot",
		},
	)
)

// Delivery and tool metrics.
var (
	TierSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_selections_total",
			Help:      "Content tiers selected for delivered documents",
		},
		[]string{"tier"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "MCP tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "MCP tool invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

var registered bool

// Register registers all collectors with the default registry. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		CacheLookupsTotal,
		CacheEvictionsTotal,
		CacheEntries,
		FetchDuration,
		FetchesInFlight,
		TierSelectionsTotal,
		ToolCallsTotal,
		ToolCallDuration,
		httpRequestDuration,
		httpRequestsTotal,
	)
	registered = true
}
