package types

import (
	"errors"
	"fmt"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
)

// Error taxonomy. Every one of these aborts a simulation run; none is retried.
var (
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrConversionFailed     = errors.New("conversion failed")
	ErrDegenerateValuation  = errors.New("degenerate valuation")
	ErrUnderflow            = fixedpoint.ErrUnderflow
	ErrNothingToClaim       = errors.New("nothing to claim")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidBatchState    = errors.New("invalid batch state")
)

// PriceError reports which price sub-source failed for which component.
type PriceError struct {
	Component ComponentID
	Source    string // "pool", "share" or "reference"
	Err       error
}

func (e *PriceError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("%s price unavailable: %v", e.Source, e.Err)
	}

	return fmt.Sprintf("%s price unavailable for %s: %v", e.Source, e.Component, e.Err)
}

func (e *PriceError) Unwrap() error {
	return e.Err
}

// Is makes every PriceError match ErrPriceUnavailable.
func (e *PriceError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

// CycleError wraps the failure that aborted a simulation run.
type CycleError struct {
	Cycle  int    // 1-based cycle index
	Stage  string // driver state when the failure happened
	Marker Marker // last known marker
	Err    error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d aborted during %s at block %d: %v", e.Cycle, e.Stage, e.Marker.Block, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
