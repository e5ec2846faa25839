package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

const (
	sourcePool  = "pool"
	sourceShare = "share"
)

// Source answers the current price of one component.
// The pool source reports the pool-implied exchange rate, the share source
// reports the vault share price. Both are scaled to 18 decimals.
type Source interface {
	CurrentPrice(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error)

// CurrentPrice calls f.
func (f SourceFunc) CurrentPrice(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error) {
	return f(ctx, id)
}

// Aggregator combines the two sub-prices of a component into its composite unit price.
// It keeps no state between calls.
type Aggregator struct {
	pool   Source
	share  Source
	logger *zap.Logger
}

// Config holds aggregator configuration.
type Config struct {
	PoolSource  Source
	ShareSource Source
	Logger      *zap.Logger
}

// New creates a new price aggregator.
func New(cfg *Config) (*Aggregator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.PoolSource == nil {
		return nil, fmt.Errorf("pool source cannot be nil")
	}
	if cfg.ShareSource == nil {
		return nil, fmt.Errorf("share source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Aggregator{
		pool:   cfg.PoolSource,
		share:  cfg.ShareSource,
		logger: cfg.Logger,
	}, nil
}

// PriceOf returns poolRate * sharePrice rescaled to 18 decimals.
// A failing sub-source yields a *types.PriceError; the lookup is not retried.
func (a *Aggregator) PriceOf(ctx context.Context, id types.ComponentID) (price fixedpoint.Value, err error) {
	rate, err := a.fetch(ctx, sourcePool, a.pool, id)
	if err != nil {
		return fixedpoint.Zero(), err
	}

	share, err := a.fetch(ctx, sourceShare, a.share, id)
	if err != nil {
		return fixedpoint.Zero(), err
	}

	price, err = rate.Mul(share)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("composite price for %s: %w", id, err)
	}

	a.logger.Debug("composite-price-resolved",
		zap.String("component", string(id)),
		zap.Stringer("pool-rate", rate),
		zap.Stringer("share-price", share),
		zap.Stringer("price", price))

	return price, nil
}

func (a *Aggregator) fetch(ctx context.Context, name string, src Source, id types.ComponentID) (fixedpoint.Value, error) {
	start := time.Now()
	v, err := src.CurrentPrice(ctx, id)
	PriceFetchDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		PriceFetchFailuresTotal.WithLabelValues(name).Inc()
		a.logger.Warn("price-source-unavailable",
			zap.String("source", name),
			zap.String("component", string(id)),
			zap.Error(err))
		return fixedpoint.Zero(), &types.PriceError{Component: id, Source: name, Err: err}
	}

	return v, nil
}
