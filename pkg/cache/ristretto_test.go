package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(DefaultRistrettoConfig(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRistrettoCache_SetGetDelete(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("decimals:0xabc", uint8(18), time.Hour))

	got, found := c.Get("decimals:0xabc")
	require.True(t, found)
	assert.Equal(t, uint8(18), got)

	_, found = c.Get("decimals:0xdef")
	assert.False(t, found)

	c.Delete("decimals:0xabc")
	_, found = c.Get("decimals:0xabc")
	assert.False(t, found)
}

func TestRistrettoCache_TTL(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("short", "v", 50*time.Millisecond))
	_, found := c.Get("short")
	require.True(t, found)

	assert.Eventually(t, func() bool {
		_, found := c.Get("short")
		return !found
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRistrettoCache_Clear(t *testing.T) {
	c := newTestCache(t)

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Clear()

	_, foundA := c.Get("a")
	_, foundB := c.Get("b")
	assert.False(t, foundA)
	assert.False(t, foundB)
}

func TestGetOrLoad(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (uint8, error) {
		loads++
		return 6, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, c, "decimals:usdc", time.Hour, load)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), v)
	}
	assert.Equal(t, 1, loads)
}

func TestGetOrLoad_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (uint8, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("rpc down")
		}
		return 18, nil
	}

	_, err := GetOrLoad(ctx, c, "decimals:x", time.Hour, load)
	require.Error(t, err)

	v, err := GetOrLoad(ctx, c, "decimals:x", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), v)
}

func TestGetOrLoad_NilCache(t *testing.T) {
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "x", nil
	}

	for i := 0; i < 2; i++ {
		_, err := GetOrLoad[string](context.Background(), nil, "k", time.Hour, load)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrLoad_TypeMismatchReloads(t *testing.T) {
	c := newTestCache(t)
	c.Set("k", "not a number", time.Hour)

	v, err := GetOrLoad(context.Background(), c, "k", time.Hour, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
