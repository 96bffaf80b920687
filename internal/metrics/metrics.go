// Package metrics declares the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quotechat_connections_active",
			Help: "Currently attached realtime connections",
		},
		[]string{"transport"}, // "websocket" or "sse"
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_events_delivered_total",
			Help: "Events enqueued to a connection",
		},
		[]string{"type"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_delivery_failures_total",
			Help: "Per-recipient delivery failures",
		},
		[]string{"reason"}, // "closed", "buffer_full", "write"
	)

	InboundRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_inbound_rejected_total",
			Help: "Inbound frames rejected before reaching the registry or store",
		},
		[]string{"reason"},
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_messages_persisted_total",
			Help: "Chat messages durably stored",
		},
		[]string{"origin"}, // "human" or "automated"
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotechat_persistence_failures_total",
			Help: "Failed durable message writes",
		},
		[]string{"reason"},
	)

	PersistLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotechat_persist_latency_seconds",
			Help:    "Durable message write latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5, 1, 5},
		},
	)
)
