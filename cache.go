package kvcache

import (
	"context"
	"fmt"
)

// Cache is the façade over a tiered memory+disk store. Get/Set/Remove have
// both a deprecated non-context flavor and a context-aware flavor; the
// context controls cancellation and timeout for the disk tier's I/O.
type Cache interface {
	// Deprecated: Use GetContext instead.
	Get(key string) (bool, any, error)
	GetContext(ctx context.Context, key string) (bool, any, error)

	// Deprecated: Use SetContext instead.
	Set(key string, val any, cost uint64) error
	// SetContext stores a value under key with the given cost. Cost is an
	// arbitrary caller-assigned weight consumed by the memory tier's cost
	// limit; the disk tier ignores it.
	SetContext(ctx context.Context, key string, val any, cost uint64) error

	// Deprecated: Use RemoveContext instead.
	Remove(key string) (bool, error)
	RemoveContext(ctx context.Context, key string) (bool, error)

	// Deprecated: Use CloseContext instead.
	Close() error
	CloseContext(ctx context.Context) error
}

// Codec is the external-collaborator boundary for object serialization
// (spec's "object serialization is provided by an external codec"): the
// disk tier stores values as bytes and needs a way to turn an arbitrary
// value into bytes and back. The memory tier never calls a Codec — it
// stores values as-is.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// codecOwner is implemented by Cache values whose GetContext may return raw
// []byte that still needs decoding (the disk tier, and any composite that
// contains one). It lets the generic helpers below decode without knowing
// the concrete cache type.
type codecOwner interface {
	codec() Codec
}

// GetContext retrieves a typed value from the cache using the provided
// context. For the memory tier, it performs a direct type assertion. For
// the disk tier, the stored value comes back as []byte and is decoded with
// c's codec into T.
func GetContext[T any](ctx context.Context, c Cache, key string) (bool, T, error) {
	found, val, err := c.GetContext(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	if data, ok := val.([]byte); ok {
		co, ok := c.(codecOwner)
		if !ok {
			var zero T
			return false, zero, fmt.Errorf("kvcache: cache %T returned raw bytes but has no codec", c)
		}
		var result T
		if err := co.codec().Decode(data, &result); err != nil {
			var zero T
			return false, zero, fmt.Errorf("kvcache: failed to decode value: %w", err)
		}
		return true, result, nil
	}
	var zero T
	return false, zero, fmt.Errorf("kvcache: cannot convert value of type %T to %T", val, zero)
}

// Deprecated: Use GetContext instead.
func Get[T any](c Cache, key string) (bool, T, error) {
	return GetContext[T](context.Background(), c, key)
}

// CacheConfig configures the Exec helper.
type CacheConfig struct {
	// Key is the cache key. Required.
	Key string
	// Cost is the weight passed to Set on a miss. Zero is a valid cost
	// (uncounted against a cost limit).
	Cost uint64
}

// Invoker produces a value of type T. The bool return indicates whether a
// value was found; return false to signal "not found" without caching a
// zero value (e.g. sql.ErrNoRows scenarios).
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. It checks the cache for config.Key first.
// On a hit, it returns the cached value. On a miss, it calls invoke; if
// invoke reports found=true, the result is stored in the cache (Set errors
// are swallowed, since the caller already has their value) and returned.
func Exec[T any](ctx context.Context, config CacheConfig, c Cache, invoke Invoker[T]) (bool, T, error) {
	found, val, err := GetContext[T](ctx, c, config.Key)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := invoke(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if !ok {
		var zero T
		return false, zero, nil
	}

	_ = c.SetContext(ctx, config.Key, result, config.Cost)

	return true, result, nil
}
