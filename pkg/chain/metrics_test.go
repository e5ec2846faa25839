package chain

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if RPCCallsTotal == nil {
		t.Error("RPCCallsTotal not registered")
	}

	if RPCErrorsTotal == nil {
		t.Error("RPCErrorsTotal not registered")
	}

	if TransactionsTotal == nil {
		t.Error("TransactionsTotal not registered")
	}

	if TransactionDurationSeconds == nil {
		t.Error("TransactionDurationSeconds not registered")
	}

	if GasUsed == nil {
		t.Error("GasUsed not registered")
	}
}
