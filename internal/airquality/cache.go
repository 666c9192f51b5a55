package airquality

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// AggregateCache memoizes derived reads until the next invalidation.
//
// Every entry is tagged with the generation it was computed under. Invalidate
// bumps the generation, so an entry computed before an invalidation is never
// served after it, even if its computation finished late. Values are shared
// between callers and must not be modified.
type AggregateCache struct {
	generation atomic.Uint64

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group   singleflight.Group
	metrics *Metrics
}

type cacheEntry struct {
	generation uint64
	value      any
}

// NewAggregateCache creates an empty cache.
func NewAggregateCache(metrics *Metrics) *AggregateCache {
	return &AggregateCache{
		entries: make(map[string]cacheEntry),
		metrics: metrics,
	}
}

// Generation returns the current cache generation.
func (c *AggregateCache) Generation() uint64 {
	return c.generation.Load()
}

// Invalidate drops every entry and returns the new generation.
func (c *AggregateCache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generation.Add(1)
	c.entries = make(map[string]cacheEntry)
	return gen
}

// Len returns the number of entries valid for the current generation.
func (c *AggregateCache) Len() int {
	gen := c.generation.Load()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.generation == gen {
			n++
		}
	}
	return n
}

func (c *AggregateCache) lookup(key string, gen uint64) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.generation != gen {
		return nil, false
	}
	return e.value, true
}

// store keeps value only if no invalidation happened since gen was read.
func (c *AggregateCache) store(key string, gen uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return
	}
	c.entries[key] = cacheEntry{generation: gen, value: value}
}

// cached returns the entry for key, computing it with load on a miss.
// Concurrent misses for the same key and generation share one load. The
// shared load outlives any single caller's cancellation; a cancelled caller
// stops waiting and gets its own ctx error. Errors are never cached.
func cached[T any](ctx context.Context, c *AggregateCache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	gen := c.generation.Load()
	if v, ok := c.lookup(key, gen); ok {
		c.metrics.cacheLookup(ctx, entryName(key), true)
		return v.(T), nil
	}
	c.metrics.cacheLookup(ctx, entryName(key), false)

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// entryName strips the argument from a key such as "city:lyon" for metrics.
func entryName(key string) string {
	name, _, _ := strings.Cut(key, ":")
	return name
}
