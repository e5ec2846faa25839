package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveConnections tracks connected stream subscribers.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basket_slippage_ws_active_connections",
		Help: "Number of connected WebSocket subscribers",
	})

	// MessagesSentTotal tracks messages written to subscribers.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_ws_messages_sent_total",
		Help: "Total number of WebSocket messages written to subscribers",
	})

	// MessagesDroppedTotal tracks messages a slow subscriber could not take.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_slippage_ws_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks subscriber connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_slippage_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket subscriber connections",
		Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400},
	})
)
