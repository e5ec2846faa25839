package slippage

import (
	"fmt"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
)

// DefaultMaxSlippage is the tolerance used when none is configured (0.5%).
var DefaultMaxSlippage = fixedpoint.MustParse("0.005") //nolint:gochecknoglobals // constant value

// Result is the outcome of comparing one conversion round trip.
type Result struct {
	// Ratio is input/output - 1. Positive means value was lost.
	Ratio           fixedpoint.Ratio
	WithinTolerance bool
}

// Evaluator compares the value put into a conversion with the value received.
type Evaluator struct {
	maxSlippage fixedpoint.Value
}

// New creates an evaluator with the given tolerance.
func New(maxSlippage fixedpoint.Value) *Evaluator {
	return &Evaluator{maxSlippage: maxSlippage}
}

// MaxSlippage returns the configured tolerance.
func (e *Evaluator) MaxSlippage() fixedpoint.Value {
	return e.maxSlippage
}

// Evaluate computes the slippage ratio of receiving output for input.
// A gain yields a negative ratio, which is always within tolerance.
func (e *Evaluator) Evaluate(input, output fixedpoint.Value) (Result, error) {
	if output.IsZero() {
		return Result{}, fmt.Errorf("evaluate slippage of %s: %w", input, types.ErrDegenerateValuation)
	}

	q, err := input.Quo(output)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate slippage of %s over %s: %w", input, output, err)
	}

	ratio := q.Delta(fixedpoint.One())

	return Result{
		Ratio:           ratio,
		WithinTolerance: ratio.LessOrEqual(e.maxSlippage),
	}, nil
}
