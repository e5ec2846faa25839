package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_cache_hits_total",
		Help: "Total number of cache hits",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_cache_misses_total",
		Help: "Total number of cache misses",
	})

	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_cache_sets_total",
		Help: "Total number of cache sets",
	})

	SetsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_cache_sets_dropped_total",
		Help: "Total number of cache sets rejected by admission",
	})

	LoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_cache_load_failures_total",
		Help: "Total number of failed loads on cache miss",
	})
)
