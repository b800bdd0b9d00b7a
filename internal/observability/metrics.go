package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeToggles counts toggle_like outcomes by target kind and result.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jnestagram_like_toggles_total",
		Help: "Like toggles by target kind and resulting state",
	}, []string{"kind", "result"})

	// LikeInsertConflicts counts inserts that lost a race against a concurrent like.
	LikeInsertConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jnestagram_like_insert_conflicts_total",
		Help: "Like inserts resolved as an existing like",
	}, []string{"kind"})

	// CounterUpdates counts denormalized counter writes by counter and strategy.
	CounterUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jnestagram_counter_updates_total",
		Help: "Denormalized counter writes by counter and strategy",
	}, []string{"counter", "strategy"})

	// CounterDriftCorrections counts rows whose stored counter differed from the recount.
	CounterDriftCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jnestagram_counter_drift_corrections_total",
		Help: "Rows corrected by a counter recount sweep",
	}, []string{"counter"})

	// MessagesSent counts direct messages.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jnestagram_messages_sent_total",
		Help: "Direct messages sent",
	})

	// InboxConnections is the number of open inbox websockets.
	InboxConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jnestagram_inbox_websocket_connections",
		Help: "Open inbox websocket connections",
	})

	// DatabaseQueryLatency records database latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jnestagram_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
