package contracts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ContractCallsTotal counts batch interaction operations by outcome.
	ContractCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_contract_operations_total",
		Help: "Total number of batch interaction contract operations",
	}, []string{"operation", "outcome"})
)
