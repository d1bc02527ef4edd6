package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fan-out Prometheus metrics.
var (
	FanoutEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nxx",
			Name:      "fanout_events_total",
			Help:      "Mutation events processed by the dispatcher",
		},
		[]string{"outcome"}, // "ok" / "fatal" / "retry"
	)

	FanoutNotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nxx",
			Name:      "fanout_notifications_total",
			Help:      "Device notifications published",
		},
	)

	FanoutDevicesPerEvent = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nxx",
			Name:      "fanout_devices_per_event",
			Help:      "Distinct devices resolved for one event",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	FanoutFilterEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nxx",
			Name:      "fanout_filter_evaluations_total",
			Help:      "Registered filters evaluated against mutated records",
		},
		[]string{"result"}, // "match" / "miss" / "invalid"
	)

	SchemaCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nxx",
			Name:      "schema_cache_total",
			Help:      "Application schema cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var fanoutMetricsRegistered bool

// RegisterFanoutMetrics registers dispatcher and schema cache metrics. Must be called once from main.
func RegisterFanoutMetrics() {
	if fanoutMetricsRegistered {
		return
	}
	prometheus.MustRegister(FanoutEventsTotal)
	prometheus.MustRegister(FanoutNotificationsTotal)
	prometheus.MustRegister(FanoutDevicesPerEvent)
	prometheus.MustRegister(FanoutFilterEvaluationsTotal)
	prometheus.MustRegister(SchemaCacheTotal)
	fanoutMetricsRegistered = true
}
