package simulation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CyclesTotal counts recorded cycles by tolerance outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_cycles_total",
		Help: "Total number of recorded simulation cycles",
	}, []string{"outcome"})

	// CycleDurationSeconds tracks wall time of a full cycle.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_slippage_cycle_duration_seconds",
		Help:    "Duration of one deposit-to-claim simulation cycle",
		Buckets: prometheus.DefBuckets,
	})

	// LastSlippageRatio is the most recent slippage ratio.
	LastSlippageRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basket_slippage_last_ratio",
		Help: "Slippage ratio of the most recent cycle",
	})

	// CurrentBlock is the marker the driver last observed.
	CurrentBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basket_slippage_current_block",
		Help: "Block number last observed by the simulation driver",
	})

	// RunsAbortedTotal counts aborted runs by stage.
	RunsAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_runs_aborted_total",
		Help: "Total number of simulation runs aborted",
	}, []string{"stage"})

	// StorageFailuresTotal counts records a sink failed to store.
	StorageFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basket_slippage_storage_failures_total",
		Help: "Total number of cycle records that failed to export",
	})
)
