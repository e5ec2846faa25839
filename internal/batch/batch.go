package batch

import (
	"fmt"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
)

// Kind is the conversion direction of a batch.
type Kind int

const (
	// Mint converts the base asset into a basket.
	Mint Kind = iota
	// Redeem converts basket tokens back into the base asset.
	Redeem
)

func (k Kind) String() string {
	switch k {
	case Mint:
		return "mint"
	case Redeem:
		return "redeem"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Opposite returns the reverse direction.
func (k Kind) Opposite() Kind {
	if k == Mint {
		return Redeem
	}
	return Mint
}

// State is the lifecycle position of a batch. Transitions only move forward.
type State int

const (
	Pending State = iota
	Triggered
	Claimed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Triggered:
		return "triggered"
	case Claimed:
		return "claimed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Batch is a pooled conversion request. Values handed out by the Ledger are
// snapshots; mutating them does not affect the ledger.
type Batch struct {
	ID        uint64
	Kind      Kind
	State     State
	Input     fixedpoint.Value // accumulated input across all depositors
	Output    fixedpoint.Value // quantity produced by the trigger
	Unclaimed fixedpoint.Value // output neither claimed nor moved yet
	Basket    types.Basket     // set once by a mint trigger
	Marker    types.Marker     // block of the trigger
	Ref       string           // collaborator's reference for this batch
	Recipient string           // last claim recipient

	shares map[string]fixedpoint.Value
}

// Share returns the unclaimed input share an account holds in the batch.
func (b *Batch) Share(account string) fixedpoint.Value {
	return b.shares[account]
}

func (b *Batch) clone() Batch {
	out := *b
	out.shares = make(map[string]fixedpoint.Value, len(b.shares))
	for k, v := range b.shares {
		out.shares[k] = v
	}
	return out
}

func (b *Batch) outstandingShares() (fixedpoint.Value, error) {
	total := fixedpoint.Zero()
	for _, s := range b.shares {
		var err error
		total, err = total.Add(s)
		if err != nil {
			return fixedpoint.Zero(), err
		}
	}
	return total, nil
}

// proRata returns the output owed for an input share. The last outstanding
// share receives whatever is left so truncation dust is never stranded.
func (b *Batch) proRata(share fixedpoint.Value) (fixedpoint.Value, error) {
	outstanding, err := b.outstandingShares()
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if share.Equal(outstanding) {
		return b.Unclaimed, nil
	}
	return fixedpoint.MulDiv(share, b.Output, b.Input)
}
