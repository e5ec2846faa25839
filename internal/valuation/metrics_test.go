package valuation

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if ValuationDurationSeconds == nil {
		t.Error("ValuationDurationSeconds not registered")
	}

	if ValuationFailuresTotal == nil {
		t.Error("ValuationFailuresTotal not registered")
	}
}
