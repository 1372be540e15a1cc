package kvcache

import (
	"context"
	"fmt"

	"github.com/agentuity/kvcache/diskengine"
	"github.com/agentuity/kvcache/errs"
	"github.com/agentuity/kvcache/memengine"
)

func errSaveFailed(key string) error {
	return errs.New(errs.KindIOFailure, fmt.Sprintf("kvcache: save failed for key %q", key))
}

// memCache adapts a *memengine.Engine to Cache. Values are stored as-is;
// there is no codec involved, so GetContext never returns raw []byte
// unless the caller put []byte in directly.
type memCache struct {
	e *memengine.Engine
}

// NewMemoryCache wraps a memory engine as a Cache. Closing the returned
// Cache stops the engine's background trim loop.
func NewMemoryCache(opts ...memengine.Option) Cache {
	return &memCache{e: memengine.New(opts...)}
}

var _ Cache = (*memCache)(nil)

func (c *memCache) Get(key string) (bool, any, error) { return c.GetContext(context.Background(), key) }

func (c *memCache) GetContext(_ context.Context, key string) (bool, any, error) {
	v, ok := c.e.Get(key)
	return ok, v, nil
}

func (c *memCache) Set(key string, val any, cost uint64) error {
	return c.SetContext(context.Background(), key, val, cost)
}

func (c *memCache) SetContext(_ context.Context, key string, val any, cost uint64) error {
	c.e.Set(key, val, cost)
	return nil
}

func (c *memCache) Remove(key string) (bool, error) { return c.RemoveContext(context.Background(), key) }

func (c *memCache) RemoveContext(_ context.Context, key string) (bool, error) {
	found := c.e.Contains(key)
	c.e.Remove(key)
	return found, nil
}

func (c *memCache) Close() error { return c.CloseContext(context.Background()) }

func (c *memCache) CloseContext(_ context.Context) error {
	c.e.Close()
	return nil
}

// diskCache adapts a *diskengine.Engine to Cache, encoding values through
// codec before Save and decoding the raw bytes GetContext returns.
type diskCache struct {
	e *diskengine.Engine
	c Codec
}

// NewDiskCache opens a disk engine at path and wraps it as a Cache. Values
// are encoded with codec before being written and decoded with it on read;
// pass kvcache.MsgpackCodec{} for the default.
func NewDiskCache(path string, storageType diskengine.StorageType, codec Codec, opts ...diskengine.Option) (Cache, error) {
	e, err := diskengine.New(path, storageType, opts...)
	if err != nil {
		return nil, err
	}
	return &diskCache{e: e, c: codec}, nil
}

var (
	_ Cache      = (*diskCache)(nil)
	_ codecOwner = (*diskCache)(nil)
)

func (c *diskCache) codec() Codec { return c.c }

func (c *diskCache) Get(key string) (bool, any, error) { return c.GetContext(context.Background(), key) }

func (c *diskCache) GetContext(ctx context.Context, key string) (bool, any, error) {
	v, ok := c.e.GetValue(ctx, key)
	if !ok {
		return false, nil, nil
	}
	return true, v, nil
}

func (c *diskCache) Set(key string, val any, cost uint64) error {
	return c.SetContext(context.Background(), key, val, cost)
}

func (c *diskCache) SetContext(ctx context.Context, key string, val any, _ uint64) error {
	data, err := c.c.Encode(val)
	if err != nil {
		return err
	}
	if !c.e.Save(ctx, key, data, "", nil) {
		return errSaveFailed(key)
	}
	return nil
}

func (c *diskCache) Remove(key string) (bool, error) { return c.RemoveContext(context.Background(), key) }

func (c *diskCache) RemoveContext(ctx context.Context, key string) (bool, error) {
	return c.e.Remove(ctx, key), nil
}

func (c *diskCache) Close() error { return c.CloseContext(context.Background()) }

func (c *diskCache) CloseContext(_ context.Context) error {
	return c.e.Close()
}

// NewTiered wraps an already-constructed memory engine and disk engine as
// a two-tier Cache: reads check mem first and fall back to disk, writes go
// to both, decoding disk hits through codec. It is a thin convenience over
// NewComposite(NewMemoryCache-style wrapper, NewDiskCache-style wrapper)
// for callers that already own both engines (e.g. to also call their
// engine-specific methods like TrimToSize or OnMemoryPressure directly).
func NewTiered(mem *memengine.Engine, disk *diskengine.Engine, codec Codec) Cache {
	return NewComposite(&memCache{e: mem}, &diskCache{e: disk, c: codec})
}

type compositeCache struct {
	caches []Cache
}

var _ Cache = (*compositeCache)(nil)

// NewComposite chains multiple caches into one: GetContext checks each in
// order and returns the first hit, SetContext writes to all of them, and
// RemoveContext removes from all of them. The common topology is an
// in-memory L1 in front of a disk L2:
//
//	c := kvcache.NewComposite(
//	    kvcache.NewMemoryCache(memengine.WithCountLimit(10_000)),
//	    disk, // from NewDiskCache
//	)
//
// At least one cache must be provided; NewComposite panics if none are.
func NewComposite(caches ...Cache) Cache {
	if len(caches) == 0 {
		panic("kvcache: NewComposite requires at least one cache")
	}
	return &compositeCache{caches: caches}
}

// codec returns the codec of the first constituent cache that has one, so
// a composite whose disk tier returns raw bytes can still be decoded by
// the generic Get/GetContext helpers.
func (c *compositeCache) codec() Codec {
	for _, cache := range c.caches {
		if co, ok := cache.(codecOwner); ok {
			return co.codec()
		}
	}
	return nil
}

var _ codecOwner = (*compositeCache)(nil)

func (c *compositeCache) GetContext(ctx context.Context, key string) (bool, any, error) {
	for _, cache := range c.caches {
		found, val, err := cache.GetContext(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (c *compositeCache) Get(key string) (bool, any, error) {
	return c.GetContext(context.Background(), key)
}

func (c *compositeCache) SetContext(ctx context.Context, key string, val any, cost uint64) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.SetContext(ctx, key, val, cost); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Set(key string, val any, cost uint64) error {
	return c.SetContext(context.Background(), key, val, cost)
}

func (c *compositeCache) RemoveContext(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, cache := range c.caches {
		found, err := cache.RemoveContext(ctx, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

func (c *compositeCache) Remove(key string) (bool, error) {
	return c.RemoveContext(context.Background(), key)
}

func (c *compositeCache) CloseContext(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.CloseContext(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Close() error {
	return c.CloseContext(context.Background())
}
