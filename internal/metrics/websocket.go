package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocket gateway Prometheus metrics.
var (
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nxx",
			Name:      "websocket_connections",
			Help:      "Open device connections on this gateway",
		},
	)

	WebsocketMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nxx",
			Name:      "websocket_messages_total",
			Help:      "Notifications handled by the gateway",
		},
		[]string{"result"}, // "delivered" / "dropped" / "failed"
	)
)

var websocketMetricsRegistered bool

// RegisterWebsocketMetrics registers gateway metrics. Must be called once from main.
func RegisterWebsocketMetrics() {
	if websocketMetricsRegistered {
		return
	}
	prometheus.MustRegister(WebsocketConnections)
	prometheus.MustRegister(WebsocketMessagesTotal)
	websocketMetricsRegistered = true
}
