// Package metrics provides Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total messages appended",
		},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_total",
			Help: "Total conversations created",
		},
	)

	// ConnectionsActive tracks active websocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	// FanoutDroppedTotal tracks live events dropped because a client
	// could not keep up or had disconnected.
	FanoutDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fanout_dropped_total",
			Help: "Live events dropped by the fan-out path",
		},
	)

	// FanoutDeliveredTotal tracks live events delivered to connections.
	FanoutDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_delivered_total",
			Help: "Live events delivered to websocket connections",
		},
		[]string{"event"},
	)
)

// RecordRequest records metrics for a completed HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
