package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RPCCallsTotal counts JSON-RPC calls by method.
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_chain_rpc_calls_total",
		Help: "Total number of JSON-RPC calls by method",
	}, []string{"method"})

	// RPCErrorsTotal counts failed JSON-RPC calls by method.
	RPCErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_chain_rpc_errors_total",
		Help: "Total number of failed JSON-RPC calls by method",
	}, []string{"method"})

	// TransactionsTotal counts sent transactions by outcome.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_slippage_chain_transactions_total",
		Help: "Total number of transactions by outcome",
	}, []string{"status"})

	// TransactionDurationSeconds tracks send-to-receipt latency.
	TransactionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_slippage_chain_transaction_duration_seconds",
		Help:    "Time from building a transaction to its receipt (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// GasUsed tracks gas used by successful transactions.
	GasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_slippage_chain_gas_used",
		Help:    "Gas used by successful transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // 21k, 42k, ..., ~10.7M
	})
)
