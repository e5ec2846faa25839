package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// BatchTransitionsTotal counts batches entering each state.
	BatchTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_batch_transitions_total",
		Help: "Total number of batch state transitions",
	}, []string{"kind", "state"})

	// BatchRejectionsTotal counts triggers rejected by the conversion service.
	BatchRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_batch_rejections_total",
		Help: "Total number of batch triggers rejected by the conversion service",
	}, []string{"kind"})
)
