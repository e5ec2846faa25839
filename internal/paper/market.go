package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/basket-slippage/internal/pricing"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
)

// ComponentParams describe one basket component on the paper market.
// Prices grow linearly per block from their value at the anchor block.
type ComponentParams struct {
	ID         types.ComponentID
	PoolRate   fixedpoint.Value // pool-implied rate at the anchor block
	SharePrice fixedpoint.Value // vault share price at the anchor block
	PoolDrift  fixedpoint.Value // added to the pool rate per block
	ShareDrift fixedpoint.Value // added to the share price per block
	Units      fixedpoint.Value // component units backing one basket token
}

// Market answers prices as a pure function of the chain head.
type Market struct {
	chain          *Chain
	anchor         uint64
	components     map[types.ComponentID]ComponentParams
	order          []types.ComponentID
	reference      fixedpoint.Value
	referenceDrift fixedpoint.Value

	mu          sync.RWMutex
	unavailable map[types.ComponentID]bool
}

// MarketConfig holds market configuration.
type MarketConfig struct {
	Chain          *Chain
	AnchorBlock    uint64
	Components     []ComponentParams
	Reference      fixedpoint.Value
	ReferenceDrift fixedpoint.Value
}

// NewMarket validates components and creates a market.
func NewMarket(cfg *MarketConfig) (*Market, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain cannot be nil")
	}
	if len(cfg.Components) == 0 {
		return nil, fmt.Errorf("at least one component is required: %w", types.ErrInvalidConfiguration)
	}
	if cfg.Reference.IsZero() {
		return nil, fmt.Errorf("reference price must be positive: %w", types.ErrInvalidConfiguration)
	}

	m := &Market{
		chain:          cfg.Chain,
		anchor:         cfg.AnchorBlock,
		components:     make(map[types.ComponentID]ComponentParams, len(cfg.Components)),
		reference:      cfg.Reference,
		referenceDrift: cfg.ReferenceDrift,
		unavailable:    make(map[types.ComponentID]bool),
	}

	for _, c := range cfg.Components {
		if c.ID == "" {
			return nil, fmt.Errorf("component id cannot be empty: %w", types.ErrInvalidConfiguration)
		}
		if _, dup := m.components[c.ID]; dup {
			return nil, fmt.Errorf("duplicate component %s: %w", c.ID, types.ErrInvalidConfiguration)
		}
		if c.Units.IsZero() {
			return nil, fmt.Errorf("component %s has no units: %w", c.ID, types.ErrInvalidConfiguration)
		}
		m.components[c.ID] = c
		m.order = append(m.order, c.ID)
	}

	return m, nil
}

// Components returns component ids in configuration order.
func (m *Market) Components() []types.ComponentID {
	out := make([]types.ComponentID, len(m.order))
	copy(out, m.order)
	return out
}

// SetUnavailable makes both price sources of a component fail. Used to
// rehearse price outages.
func (m *Market) SetUnavailable(id types.ComponentID, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unavailable[id] = down
}

// PoolSource returns the pool-implied rate source.
func (m *Market) PoolSource() pricing.Source {
	return pricing.SourceFunc(func(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error) {
		c, err := m.lookup(id)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		return m.drifted(c.PoolRate, c.PoolDrift)
	})
}

// ShareSource returns the vault share price source.
func (m *Market) ShareSource() pricing.Source {
	return pricing.SourceFunc(func(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error) {
		c, err := m.lookup(id)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		return m.drifted(c.SharePrice, c.ShareDrift)
	})
}

// ReferencePrice prices the base asset at the chain head.
func (m *Market) ReferencePrice(ctx context.Context) (fixedpoint.Value, error) {
	err := ctx.Err()
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("reference price: %w", err)
	}
	return m.drifted(m.reference, m.referenceDrift)
}

// UnitPrice returns the composite price of one component unit.
func (m *Market) UnitPrice(id types.ComponentID) (fixedpoint.Value, error) {
	c, err := m.lookup(id)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	rate, err := m.drifted(c.PoolRate, c.PoolDrift)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	share, err := m.drifted(c.SharePrice, c.ShareDrift)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return rate.Mul(share)
}

// NAV returns the value of the components backing one basket token.
func (m *Market) NAV() (fixedpoint.Value, error) {
	total := fixedpoint.Zero()
	for _, id := range m.order {
		price, err := m.UnitPrice(id)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		v, err := m.components[id].Units.Mul(price)
		if err != nil {
			return fixedpoint.Zero(), err
		}
		total, err = total.Add(v)
		if err != nil {
			return fixedpoint.Zero(), err
		}
	}
	return total, nil
}

func (m *Market) lookup(id types.ComponentID) (ComponentParams, error) {
	c, ok := m.components[id]
	if !ok {
		return ComponentParams{}, fmt.Errorf("unknown component %s", id)
	}
	m.mu.RLock()
	down := m.unavailable[id]
	m.mu.RUnlock()
	if down {
		return ComponentParams{}, fmt.Errorf("component %s is paused", id)
	}
	return c, nil
}

func (m *Market) drifted(base, perBlock fixedpoint.Value) (fixedpoint.Value, error) {
	head := m.chain.Block()
	if head <= m.anchor || perBlock.IsZero() {
		return base, nil
	}

	growth, err := perBlock.MulUint64(head - m.anchor)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return base.Add(growth)
}
