package simulation

import (
	"fmt"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
)

// Default run parameters.
const (
	DefaultStartBlock    uint64 = 12833323
	DefaultEndBlock      uint64 = 13307297
	DefaultAdvanceBlocks uint64 = 35
)

// Params are the knobs of one simulation run.
type Params struct {
	InputAmount   fixedpoint.Value `json:"input_amount"`
	MaxSlippage   fixedpoint.Value `json:"max_slippage"`
	StartBlock    uint64           `json:"start_block"`
	EndBlock      uint64           `json:"end_block"`
	MaxCycles     int              `json:"max_cycles"` // 0 means unbounded
	AdvanceBlocks uint64           `json:"advance_blocks"`
}

// DefaultParams returns parameters for a 100M unit run over the default block range.
func DefaultParams() Params {
	return Params{
		InputAmount:   fixedpoint.FromUnits(100_000_000),
		MaxSlippage:   fixedpoint.MustParse("0.005"),
		StartBlock:    DefaultStartBlock,
		EndBlock:      DefaultEndBlock,
		AdvanceBlocks: DefaultAdvanceBlocks,
	}
}

// Validate rejects parameter combinations no run could start with.
func (p Params) Validate() error {
	if p.InputAmount.IsZero() {
		return fmt.Errorf("input amount must be positive: %w", types.ErrInvalidConfiguration)
	}
	if p.EndBlock <= p.StartBlock {
		return fmt.Errorf("end block %d must be after start block %d: %w", p.EndBlock, p.StartBlock, types.ErrInvalidConfiguration)
	}
	if p.MaxCycles < 0 {
		return fmt.Errorf("max cycles must be non-negative: %w", types.ErrInvalidConfiguration)
	}
	if p.AdvanceBlocks == 0 {
		return fmt.Errorf("advance blocks must be positive: %w", types.ErrInvalidConfiguration)
	}

	return nil
}
