package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// settlement is the converter's view of a triggered batch.
type settlement struct {
	kind      batch.Kind
	input     fixedpoint.Value
	output    fixedpoint.Value
	remaining fixedpoint.Value // input share not yet claimed or moved
}

// Converter is an in-process conversion service. Mints turn the base asset
// into basket tokens at NAV minus a fee and a size-dependent impact; redeems
// do the reverse. Every trigger mines one block, reverted or not.
type Converter struct {
	chain  *Chain
	market *Market
	fee    fixedpoint.Value
	depth  fixedpoint.Value
	limit  fixedpoint.Value
	logger *zap.Logger

	mu          sync.Mutex
	pending     map[batch.Kind]fixedpoint.Value
	settlements map[string]*settlement
	balances    map[string]map[batch.Kind]fixedpoint.Value
	nextRef     uint64
}

// ConverterConfig holds converter configuration.
type ConverterConfig struct {
	Chain  *Chain
	Market *Market
	// Fee is the fraction of value kept by the service on each conversion.
	Fee fixedpoint.Value
	// Depth scales price impact: the output shrinks by depth/(depth+value).
	// Zero disables impact.
	Depth fixedpoint.Value
	// MaxMintValue rejects mints worth more than this. Zero means no limit.
	MaxMintValue fixedpoint.Value
	Logger       *zap.Logger
}

// NewConverter creates a paper converter.
func NewConverter(cfg *ConverterConfig) (*Converter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain cannot be nil")
	}
	if cfg.Market == nil {
		return nil, fmt.Errorf("market cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Fee.Cmp(fixedpoint.One()) >= 0 {
		return nil, fmt.Errorf("fee must be below 1: %w", types.ErrInvalidConfiguration)
	}

	return &Converter{
		chain:       cfg.Chain,
		market:      cfg.Market,
		fee:         cfg.Fee,
		depth:       cfg.Depth,
		limit:       cfg.MaxMintValue,
		logger:      cfg.Logger,
		pending:     make(map[batch.Kind]fixedpoint.Value),
		settlements: make(map[string]*settlement),
		balances:    make(map[string]map[batch.Kind]fixedpoint.Value),
		nextRef:     1,
	}, nil
}

// Deposit queues amount for the next conversion of kind.
func (c *Converter) Deposit(ctx context.Context, kind batch.Kind, amount fixedpoint.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum, err := c.pending[kind].Add(amount)
	if err != nil {
		return fmt.Errorf("queue %s deposit: %w", kind, err)
	}
	c.pending[kind] = sum
	return nil
}

// Trigger converts everything queued for kind.
func (c *Converter) Trigger(ctx context.Context, kind batch.Kind) (*batch.Conversion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.pending[kind]
	if in.IsZero() {
		return nil, fmt.Errorf("nothing queued for %s", kind)
	}

	// the conversion executes in a freshly mined block, at that block's prices
	marker := c.chain.Mine()

	var (
		conv *batch.Conversion
		err  error
	)
	switch kind {
	case batch.Mint:
		conv, err = c.mint(ctx, in)
	case batch.Redeem:
		conv, err = c.redeem(ctx, in)
	default:
		err = fmt.Errorf("unsupported batch kind %s", kind)
	}
	if err != nil {
		return nil, err
	}

	conv.Marker = marker
	conv.Ref = fmt.Sprintf("0x%064x", c.nextRef)
	c.nextRef++

	c.pending[kind] = fixedpoint.Zero()
	c.settlements[conv.Ref] = &settlement{
		kind:      kind,
		input:     in,
		output:    conv.Output,
		remaining: in,
	}

	c.logger.Debug("paper-conversion-executed",
		zap.Stringer("kind", kind),
		zap.String("ref", conv.Ref),
		zap.Stringer("input", in),
		zap.Stringer("output", conv.Output),
		zap.Uint64("block", conv.Marker.Block))

	return conv, nil
}

func (c *Converter) mint(ctx context.Context, in fixedpoint.Value) (*batch.Conversion, error) {
	ref, err := c.market.ReferencePrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("price base asset: %w", err)
	}
	value, err := in.Mul(ref)
	if err != nil {
		return nil, err
	}
	if !c.limit.IsZero() && value.Cmp(c.limit) > 0 {
		return nil, fmt.Errorf("mint value %s exceeds limit %s", value, c.limit)
	}

	net, err := c.afterCosts(value)
	if err != nil {
		return nil, err
	}

	nav, err := c.market.NAV()
	if err != nil {
		return nil, fmt.Errorf("compute nav: %w", err)
	}
	tokens, err := net.Quo(nav)
	if err != nil {
		return nil, fmt.Errorf("size mint: %w", err)
	}

	holdings := make([]types.Holding, 0, len(c.market.order))
	for _, id := range c.market.order {
		qty, err := tokens.Mul(c.market.components[id].Units)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, types.Holding{Component: id, Quantity: qty})
	}

	basket, err := types.NewBasket(holdings)
	if err != nil {
		return nil, err
	}

	return &batch.Conversion{Output: tokens, Basket: basket}, nil
}

func (c *Converter) redeem(ctx context.Context, tokens fixedpoint.Value) (*batch.Conversion, error) {
	nav, err := c.market.NAV()
	if err != nil {
		return nil, fmt.Errorf("compute nav: %w", err)
	}
	value, err := tokens.Mul(nav)
	if err != nil {
		return nil, err
	}

	net, err := c.afterCosts(value)
	if err != nil {
		return nil, err
	}

	ref, err := c.market.ReferencePrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("price base asset: %w", err)
	}
	out, err := net.Quo(ref)
	if err != nil {
		return nil, fmt.Errorf("size redeem: %w", err)
	}

	return &batch.Conversion{Output: out}, nil
}

// afterCosts applies the fee and the size impact to a gross value.
func (c *Converter) afterCosts(value fixedpoint.Value) (fixedpoint.Value, error) {
	keep, err := fixedpoint.One().Sub(c.fee)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	net, err := value.Mul(keep)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if c.depth.IsZero() {
		return net, nil
	}

	denom, err := c.depth.Add(value)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return fixedpoint.MulDiv(net, c.depth, denom)
}

// MoveUnclaimed re-queues part of a settled batch into the opposite kind.
func (c *Converter) MoveUnclaimed(ctx context.Context, from batch.Kind, ref string, amount fixedpoint.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.settlement(from, ref)
	if err != nil {
		return err
	}

	remaining, err := s.remaining.Sub(amount)
	if err != nil {
		return fmt.Errorf("move %s from %s: %w", amount, ref, err)
	}

	moved, err := fixedpoint.MulDiv(s.output, amount, s.input)
	if err != nil {
		return err
	}
	queued, err := c.pending[from.Opposite()].Add(moved)
	if err != nil {
		return err
	}

	s.remaining = remaining
	c.pending[from.Opposite()] = queued
	return nil
}

// Claim pays the remaining share of a settled batch to recipient.
func (c *Converter) Claim(ctx context.Context, kind batch.Kind, ref string, recipient string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.settlement(kind, ref)
	if err != nil {
		return err
	}
	if s.remaining.IsZero() {
		return fmt.Errorf("batch %s: %w", ref, types.ErrNothingToClaim)
	}

	paid, err := fixedpoint.MulDiv(s.output, s.remaining, s.input)
	if err != nil {
		return err
	}

	// a redeem pays out the base asset, a mint pays out basket tokens
	asset := kind.Opposite()
	acct := c.balances[recipient]
	if acct == nil {
		acct = make(map[batch.Kind]fixedpoint.Value)
		c.balances[recipient] = acct
	}
	acct[asset], err = acct[asset].Add(paid)
	if err != nil {
		return err
	}

	s.remaining = fixedpoint.Zero()
	return nil
}

// Balance returns what has been claimed to recipient, keyed by the batch kind
// the claimed asset can be deposited into next.
func (c *Converter) Balance(recipient string, asset batch.Kind) fixedpoint.Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.balances[recipient][asset]
}

func (c *Converter) settlement(kind batch.Kind, ref string) (*settlement, error) {
	s, ok := c.settlements[ref]
	if !ok {
		return nil, fmt.Errorf("unknown batch reference %s", ref)
	}
	if s.kind != kind {
		return nil, fmt.Errorf("batch %s is a %s batch, not %s", ref, s.kind, kind)
	}
	return s, nil
}
