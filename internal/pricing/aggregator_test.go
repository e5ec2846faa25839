package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticSource(prices map[types.ComponentID]string) Source {
	return SourceFunc(func(_ context.Context, id types.ComponentID) (fixedpoint.Value, error) {
		p, ok := prices[id]
		if !ok {
			return fixedpoint.Zero(), errors.New("unknown component")
		}
		return fixedpoint.MustParse(p), nil
	})
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)
	src := staticSource(nil)

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{name: "valid-config", config: &Config{PoolSource: src, ShareSource: src, Logger: logger}},
		{name: "nil-config", config: nil, errMsg: "config cannot be nil"},
		{name: "nil-pool", config: &Config{ShareSource: src, Logger: logger}, errMsg: "pool source cannot be nil"},
		{name: "nil-share", config: &Config{PoolSource: src, Logger: logger}, errMsg: "share source cannot be nil"},
		{name: "nil-logger", config: &Config{PoolSource: src, ShareSource: src}, errMsg: "logger cannot be nil"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			agg, err := New(tt.config)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, agg)
		})
	}
}

func TestPriceOf_Composite(t *testing.T) {
	agg, err := New(&Config{
		PoolSource:  staticSource(map[types.ComponentID]string{"yDUSD": "1.0203", "yFRAX": "1"}),
		ShareSource: staticSource(map[types.ComponentID]string{"yDUSD": "1.01", "yFRAX": "0.5"}),
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	price, err := agg.PriceOf(context.Background(), "yDUSD")
	require.NoError(t, err)
	assert.Equal(t, "1.030503", price.String())

	price, err = agg.PriceOf(context.Background(), "yFRAX")
	require.NoError(t, err)
	assert.Equal(t, "0.5", price.String())
}

func TestPriceOf_Deterministic(t *testing.T) {
	agg, err := New(&Config{
		PoolSource:  staticSource(map[types.ComponentID]string{"yUST": "1.000123456789"}),
		ShareSource: staticSource(map[types.ComponentID]string{"yUST": "1.0987654321"}),
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	first, err := agg.PriceOf(context.Background(), "yUST")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := agg.PriceOf(context.Background(), "yUST")
		require.NoError(t, err)
		assert.True(t, again.Equal(first))
	}
}

func TestPriceOf_SourceUnavailable(t *testing.T) {
	down := SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
		return fixedpoint.Zero(), errors.New("node unreachable")
	})
	up := staticSource(map[types.ComponentID]string{"yUSDN": "1"})

	tests := []struct {
		name       string
		pool       Source
		share      Source
		wantSource string
	}{
		{name: "pool-down", pool: down, share: up, wantSource: "pool"},
		{name: "share-down", pool: up, share: down, wantSource: "share"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			agg, err := New(&Config{PoolSource: tt.pool, ShareSource: tt.share, Logger: zaptest.NewLogger(t)})
			require.NoError(t, err)

			_, err = agg.PriceOf(context.Background(), "yUSDN")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrPriceUnavailable)

			var priceErr *types.PriceError
			require.ErrorAs(t, err, &priceErr)
			assert.Equal(t, tt.wantSource, priceErr.Source)
			assert.Equal(t, types.ComponentID("yUSDN"), priceErr.Component)
		})
	}
}

func TestPriceOf_NoRetry(t *testing.T) {
	calls := 0
	flaky := SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
		calls++
		return fixedpoint.Zero(), errors.New("temporarily unavailable")
	})

	agg, err := New(&Config{PoolSource: flaky, ShareSource: flaky, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	_, err = agg.PriceOf(context.Background(), "yDUSD")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
