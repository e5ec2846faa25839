package valuation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ValuationDurationSeconds tracks the time to price a whole basket.
	ValuationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_slippage_valuation_duration_seconds",
		Help:    "Time taken to value a basket including all price lookups",
		Buckets: prometheus.DefBuckets,
	})

	// ValuationFailuresTotal counts valuations aborted by a failed lookup.
	ValuationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_valuation_failures_total",
		Help: "Total number of basket valuations that failed",
	})
)
