package pgcache

import (
	"context"
	"fmt"

	gocache "github.com/goliatone/go-pg-cache/cache"
)

// Lookup is a point-lookup accessor layered over a Cache's published
// snapshot. Where Cache.Snapshot().Get is a plain map read, Lookup adds
// sturdyc's single-flight memoization via internal/cacheinfra: a found value
// is remembered until its TTL expires, and concurrent callers requesting the
// same cold key collapse into one fetch. Absent keys are not remembered:
// every Get of a key missing from the snapshot reads the snapshot again.
//
// A Lookup is optional: any caller happy with direct Container.Get access
// can skip it entirely and call Cache.Snapshot() itself.
type Lookup[K comparable, V any] struct {
	cache      *Cache[V, K]
	service    gocache.CacheService
	serializer gocache.KeySerializer
}

// NewLookup builds a Lookup over c, using cfg to construct the underlying
// sturdyc-backed CacheService (internal/cacheinfra.NewSturdycService via
// gocache.NewCacheService).
func NewLookup[K comparable, V any](c *Cache[V, K], cfg gocache.Config) (*Lookup[K, V], error) {
	service, err := gocache.NewCacheService(cfg)
	if err != nil {
		return nil, fmt.Errorf("pgcache: build lookup cache service for %q: %w", c.Name(), err)
	}
	return &Lookup[K, V]{
		cache:      c,
		service:    service,
		serializer: gocache.NewDefaultKeySerializer(),
	}, nil
}

// Get returns the value for key, reading through the published snapshot on
// a cache miss. It returns ErrNotFound if key is absent; that result is not
// stored, so the next Get for the same key checks the snapshot again.
func (l *Lookup[K, V]) Get(ctx context.Context, key K) (V, error) {
	cacheKey := l.serializer.SerializeKey(l.cache.Name(), key)
	return gocache.GetOrFetch[V](ctx, l.service, cacheKey, func(ctx context.Context) (V, error) {
		var zero V
		snap := l.cache.Snapshot()
		if snap == nil {
			return zero, ErrNotFound
		}
		v, ok := snap.Get(key)
		if !ok {
			return zero, ErrNotFound
		}
		return v, nil
	})
}

// Invalidate removes key from the lookup cache, forcing the next Get to
// read through the snapshot again.
func (l *Lookup[K, V]) Invalidate(ctx context.Context, key K) error {
	cacheKey := l.serializer.SerializeKey(l.cache.Name(), key)
	return l.service.Delete(ctx, cacheKey)
}
