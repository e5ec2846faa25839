package batch

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if BatchTransitionsTotal == nil {
		t.Error("BatchTransitionsTotal not registered")
	}

	if BatchRejectionsTotal == nil {
		t.Error("BatchRejectionsTotal not registered")
	}
}
