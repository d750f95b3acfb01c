// Package cache provides the caching interfaces and key serialization
// pgcache.Lookup is built on: a generic read-through CacheService and the
// KeySerializer it uses to turn a cache name and key into a stable string.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - CacheService: A generic caching interface for read-through operations
//   - KeySerializer: Builds stable cache keys from method names and arguments
//
// The underlying implementation (internal/cacheinfra) wraps
// github.com/viccon/sturdyc, giving single-flight memoization, and
// negative-result caching for fetch functions that return sturdyc.ErrNotFound
// (pgcache.Lookup returns its own ErrNotFound, which is not cached). pgcache.NewLookup is the intended entry point for
// most callers; this package is exported so a caller can construct a
// CacheService directly for uses beyond pgcache.Lookup.
//
// # Basic Usage
//
// The simplest way to use the cache package is with the default key serializer:
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("products", 42)
//
// pgcache.Lookup wires a CacheService and KeySerializer together
// automatically:
//
//	lookup, err := pgcache.NewLookup[int, Product](productsCache, cache.DefaultConfig())
//	product, err := lookup.Get(ctx, 42)
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle various Go types:
//
//   - Function pointers: Uses %p formatting for stability within a process
//   - Basic types: Direct string representation
//   - Slices/arrays: Recursive serialization of elements
//   - Maps: Sorted key-value pairs for deterministic output
//   - Structs: Exported fields with name:value pairs
//   - Complex types: JSON fallback with error handling
//
// # Custom Key Serializers
//
// You can implement your own KeySerializer for specialized key generation:
//
//	type CustomKeySerializer struct {
//		prefix string
//	}
//
//	func (s *CustomKeySerializer) SerializeKey(method string, args ...any) string {
//		// Custom logic here
//		return s.prefix + ":" + method + ":" + /* serialize args */
//	}
//
// This is useful when you need:
//   - Different key formats for different cache backends
//   - Application-specific key structures or namespacing
//
// # Error Handling
//
// The package prioritizes stability over perfection. When JSON marshaling fails,
// the key serializer falls back to type information and memory addresses rather
// than panicking. This ensures cache operations continue even with problematic data types.
//
// # See Also
//
// For the point-lookup accessor this package backs, see pgcache.Lookup.
// For the specific key generation implementation details, see key_serializer.go.
package cache
