package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PriceOracle resolves the composite unit price of a component.
// *pricing.Aggregator implements it.
type PriceOracle interface {
	PriceOf(ctx context.Context, id types.ComponentID) (fixedpoint.Value, error)
}

// ComponentValue is one line of an appraisal.
type ComponentValue struct {
	Component types.ComponentID `json:"component"`
	Quantity  fixedpoint.Value  `json:"quantity"`
	Price     fixedpoint.Value  `json:"price"`
	Value     fixedpoint.Value  `json:"value"`
}

// Appraisal is the itemized value of a basket.
type Appraisal struct {
	Components []ComponentValue `json:"components"`
	Total      fixedpoint.Value `json:"total"`
}

// Valuator computes basket value in the reference currency.
type Valuator struct {
	oracle      PriceOracle
	concurrency int
	logger      *zap.Logger
}

// Config holds valuator configuration.
type Config struct {
	Oracle      PriceOracle
	Concurrency int // max in-flight price lookups, 0 means one per component
	Logger      *zap.Logger
}

// New creates a new basket valuator.
func New(cfg *Config) (*Valuator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("price oracle cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative")
	}

	return &Valuator{
		oracle:      cfg.Oracle,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}, nil
}

// ValueOf returns the total value of the basket. It is all-or-nothing:
// if any price lookup fails no value is returned.
func (v *Valuator) ValueOf(ctx context.Context, basket types.Basket) (fixedpoint.Value, error) {
	appraisal, err := v.Appraise(ctx, basket)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return appraisal.Total, nil
}

// Appraise prices every component concurrently, waits for all lookups and
// then sums quantity*price in component id order.
func (v *Valuator) Appraise(ctx context.Context, basket types.Basket) (*Appraisal, error) {
	start := time.Now()
	defer func() {
		ValuationDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	holdings := basket.Holdings()
	if len(holdings) == 0 {
		return &Appraisal{Total: fixedpoint.Zero()}, nil
	}

	prices := make([]fixedpoint.Value, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	if v.concurrency > 0 {
		g.SetLimit(v.concurrency)
	}

	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			price, err := v.oracle.PriceOf(gctx, h.Component)
			if err != nil {
				return err
			}
			prices[i] = price
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		ValuationFailuresTotal.Inc()
		return nil, fmt.Errorf("value basket: %w", err)
	}

	appraisal := &Appraisal{
		Components: make([]ComponentValue, 0, len(holdings)),
		Total:      fixedpoint.Zero(),
	}

	for i, h := range holdings {
		value, err := h.Quantity.Mul(prices[i])
		if err != nil {
			return nil, fmt.Errorf("value %s: %w", h.Component, err)
		}

		appraisal.Total, err = appraisal.Total.Add(value)
		if err != nil {
			return nil, fmt.Errorf("sum basket value: %w", err)
		}

		appraisal.Components = append(appraisal.Components, ComponentValue{
			Component: h.Component,
			Quantity:  h.Quantity,
			Price:     prices[i],
			Value:     value,
		})
	}

	v.logger.Debug("basket-appraised",
		zap.Int("components", len(holdings)),
		zap.Stringer("total", appraisal.Total))

	return appraisal, nil
}
