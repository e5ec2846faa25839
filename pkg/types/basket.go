package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
)

// ComponentID identifies one yield-bearing component asset of a basket.
type ComponentID string

// Holding is a quantity of one component.
type Holding struct {
	Component ComponentID      `json:"component"`
	Quantity  fixedpoint.Value `json:"quantity"`
}

// Basket is an ordered set of unique components, sorted by identifier.
// It is a value type: Holdings returns a copy, so a basket cannot be mutated
// after construction.
type Basket struct {
	holdings []Holding
}

// NewBasket sorts the holdings by component id and rejects duplicates.
func NewBasket(holdings []Holding) (Basket, error) {
	sorted := make([]Holding, len(holdings))
	copy(sorted, holdings)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Component < sorted[j].Component
	})

	for i, h := range sorted {
		if h.Component == "" {
			return Basket{}, fmt.Errorf("basket holding %d has empty component id", i)
		}
		if i > 0 && sorted[i-1].Component == h.Component {
			return Basket{}, fmt.Errorf("duplicate component %s in basket", h.Component)
		}
	}

	return Basket{holdings: sorted}, nil
}

// Holdings returns the holdings in identifier order.
func (b Basket) Holdings() []Holding {
	out := make([]Holding, len(b.holdings))
	copy(out, b.holdings)
	return out
}

// Len returns the number of components.
func (b Basket) Len() int {
	return len(b.holdings)
}

// IsEmpty reports whether the basket holds nothing.
func (b Basket) IsEmpty() bool {
	return len(b.holdings) == 0
}

// Quantity returns the quantity held of one component.
func (b Basket) Quantity(id ComponentID) (fixedpoint.Value, bool) {
	i := sort.Search(len(b.holdings), func(i int) bool {
		return b.holdings[i].Component >= id
	})
	if i < len(b.holdings) && b.holdings[i].Component == id {
		return b.holdings[i].Quantity, true
	}
	return fixedpoint.Zero(), false
}

// Marker is the block/time progress counter that drives the simulation.
type Marker struct {
	Block     uint64    `json:"block"`
	Timestamp time.Time `json:"timestamp"`
}

// After reports whether m is strictly later than o.
func (m Marker) After(o Marker) bool {
	return m.Block > o.Block
}
