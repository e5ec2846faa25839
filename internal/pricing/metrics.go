package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PriceFetchDurationSeconds tracks latency of each price sub-source.
	PriceFetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_slippage_price_fetch_duration_seconds",
		Help:    "Time taken to fetch a component sub-price",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// PriceFetchFailuresTotal counts sub-source failures.
	PriceFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_price_fetch_failures_total",
		Help: "Total number of failed sub-price lookups",
	}, []string{"source"})
)
