package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/basket-slippage/pkg/cache"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// decimalsTTL bounds how long vault decimals are trusted. They never change
// after deployment.
const decimalsTTL = 24 * time.Hour

// Component links a basket component to its on-chain contracts.
type Component struct {
	ID       types.ComponentID
	Token    common.Address // component token as listed by the issuance module
	Metapool common.Address
	Vault    common.Address
}

// Registry maps component ids and token addresses to contracts.
type Registry struct {
	byID    map[types.ComponentID]Component
	byToken map[common.Address]types.ComponentID
}

// NewRegistry indexes components. Ids and token addresses must be unique.
func NewRegistry(components []Component) (*Registry, error) {
	r := &Registry{
		byID:    make(map[types.ComponentID]Component, len(components)),
		byToken: make(map[common.Address]types.ComponentID, len(components)),
	}

	for _, c := range components {
		if c.ID == "" {
			return nil, fmt.Errorf("component id cannot be empty: %w", types.ErrInvalidConfiguration)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate component %s: %w", c.ID, types.ErrInvalidConfiguration)
		}
		if _, dup := r.byToken[c.Token]; dup {
			return nil, fmt.Errorf("duplicate token %s: %w", c.Token.Hex(), types.ErrInvalidConfiguration)
		}
		r.byID[c.ID] = c
		r.byToken[c.Token] = c.ID
	}

	return r, nil
}

// Lookup returns a component by id.
func (r *Registry) Lookup(id types.ComponentID) (Component, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ComponentFor resolves a token address to its component id.
func (r *Registry) ComponentFor(token common.Address) (types.ComponentID, bool) {
	id, ok := r.byToken[token]
	return id, ok
}

// PoolRates reads the pool-implied rate from each component's Curve metapool.
type PoolRates struct {
	caller   Caller
	registry *Registry
}

// NewPoolRates creates the pool rate source.
func NewPoolRates(caller Caller, registry *Registry) *PoolRates {
	return &PoolRates{caller: caller, registry: registry}
}

// CurrentPrice returns get_virtual_price of the component's metapool.
func (p *PoolRates) CurrentPrice(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error) {
	c, ok := p.registry.Lookup(id)
	if !ok {
		return fixedpoint.Zero(), fmt.Errorf("unknown component %s", id)
	}

	raw, err := callUint256(ctx, p.caller, metapoolContract, c.Metapool, "get_virtual_price")
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return fixedpoint.FromRaw(raw)
}

// SharePrices reads the share price from each component's Yearn vault,
// normalized from the vault's decimals to 18.
type SharePrices struct {
	caller   Caller
	registry *Registry
	cache    cache.Cache
	logger   *zap.Logger
}

// NewSharePrices creates the share price source. The cache may be nil.
func NewSharePrices(caller Caller, registry *Registry, c cache.Cache, logger *zap.Logger) *SharePrices {
	return &SharePrices{caller: caller, registry: registry, cache: c, logger: logger}
}

// CurrentPrice returns pricePerShare of the component's vault.
func (s *SharePrices) CurrentPrice(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error) {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return fixedpoint.Zero(), fmt.Errorf("unknown component %s", id)
	}

	decimals, err := s.decimals(ctx, c.Vault)
	if err != nil {
		return fixedpoint.Zero(), err
	}

	raw, err := callUint256(ctx, s.caller, vaultContract, c.Vault, "pricePerShare")
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return scaleTo18(raw, decimals)
}

func (s *SharePrices) decimals(ctx context.Context, vault common.Address) (uint8, error) {
	key := fmt.Sprintf("decimals:%s", vault.Hex())
	return cache.GetOrLoad(ctx, s.cache, key, decimalsTTL, func(ctx context.Context) (uint8, error) {
		out, err := call(ctx, s.caller, vaultContract, vault, "decimals")
		if err != nil {
			return 0, err
		}
		d, ok := out[0].(uint8)
		if !ok {
			return 0, fmt.Errorf("decimals returned %T", out[0])
		}
		s.logger.Debug("vault-decimals-loaded",
			zap.String("vault", vault.Hex()),
			zap.Uint8("decimals", d))
		return d, nil
	})
}

// ReferencePool prices the base asset using the 3pool virtual price.
type ReferencePool struct {
	caller Caller
	pool   common.Address
}

// NewReferencePool creates the reference price source.
func NewReferencePool(caller Caller, pool common.Address) *ReferencePool {
	return &ReferencePool{caller: caller, pool: pool}
}

// ReferencePrice returns get_virtual_price of the pool.
func (r *ReferencePool) ReferencePrice(ctx context.Context) (fixedpoint.Value, error) {
	raw, err := callUint256(ctx, r.caller, metapoolContract, r.pool, "get_virtual_price")
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return fixedpoint.FromRaw(raw)
}
