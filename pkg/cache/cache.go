package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache holds values that are expensive to fetch and rarely change, such as
// token decimals read from a contract.
type Cache interface {
	// Get returns (value, true) on a hit and (nil, false) on a miss.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. It may drop the value under admission pressure.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases resources.
	Close()
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result. A nil cache always loads. Load errors are not cached.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if c != nil {
		if cached, ok := c.Get(key); ok {
			if v, ok := cached.(T); ok {
				return v, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil {
		LoadFailuresTotal.Inc()
		var zero T
		return zero, fmt.Errorf("load %s: %w", key, err)
	}

	if c != nil {
		c.Set(key, v, ttl)
	}
	return v, nil
}
