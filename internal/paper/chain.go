package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/basket-slippage/pkg/types"
)

// DefaultBlockTime approximates mainnet block spacing.
const DefaultBlockTime = 13 * time.Second

// Chain is a deterministic block counter. Timestamps are derived from the
// block number so replays produce identical markers.
type Chain struct {
	mu        sync.Mutex
	block     uint64
	genesis   time.Time
	blockTime time.Duration
}

// NewChain creates a chain whose head is at block. genesis is the timestamp of block 0.
func NewChain(block uint64, genesis time.Time, blockTime time.Duration) *Chain {
	if blockTime <= 0 {
		blockTime = DefaultBlockTime
	}
	return &Chain{
		block:     block,
		genesis:   genesis.UTC(),
		blockTime: blockTime,
	}
}

// CurrentMarker returns the head marker.
func (c *Chain) CurrentMarker(ctx context.Context) (types.Marker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.markerLocked(), nil
}

// Advance mines n empty blocks and returns the new head.
func (c *Chain) Advance(ctx context.Context, n uint64) (types.Marker, error) {
	if err := ctx.Err(); err != nil {
		return types.Marker{}, fmt.Errorf("advance chain: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.block += n
	return c.markerLocked(), nil
}

// Mine includes one block and returns its marker.
func (c *Chain) Mine() types.Marker {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.block++
	return c.markerLocked()
}

// Block returns the head block number.
func (c *Chain) Block() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.block
}

func (c *Chain) markerLocked() types.Marker {
	return types.Marker{
		Block:     c.block,
		Timestamp: c.genesis.Add(time.Duration(c.block) * c.blockTime),
	}
}
