package pgcache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Container is a keyed container holding one snapshot generation. The
// update driver is the only writer of a Container while it is a working
// copy; once published, a Container is read-only in practice even though
// the interface does not enforce that statically.
type Container[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
	// Range calls fn for every entry. Iteration order is unspecified.
	Range(fn func(key K, value V) bool)
	// Clone returns a deep (entry-wise) copy, used to build the working
	// snapshot for an incremental update.
	Clone() Container[K, V]
}

// mapContainer is the default Container: a plain Go map, hash-based lookup,
// insertion-unordered.
type mapContainer[K comparable, V any] struct {
	m map[K]V
}

func newMapContainer[K comparable, V any]() Container[K, V] {
	return &mapContainer[K, V]{m: make(map[K]V)}
}

func (c *mapContainer[K, V]) Get(key K) (V, bool) {
	v, ok := c.m[key]
	return v, ok
}

func (c *mapContainer[K, V]) Set(key K, value V) {
	c.m[key] = value
}

func (c *mapContainer[K, V]) Delete(key K) {
	delete(c.m, key)
}

func (c *mapContainer[K, V]) Len() int {
	return len(c.m)
}

func (c *mapContainer[K, V]) Range(fn func(key K, value V) bool) {
	for k, v := range c.m {
		if !fn(k, v) {
			return
		}
	}
}

func (c *mapContainer[K, V]) Clone() Container[K, V] {
	clone := make(map[K]V, len(c.m))
	for k, v := range c.m {
		clone[k] = v
	}
	return &mapContainer[K, V]{m: clone}
}

// xsyncContainer is a Container backed by github.com/puzpuzpuz/xsync/v3's
// lock-striped map. A policy opts into it via Policy.NewContainer when
// something other than the update driver needs to range the working copy
// concurrently with an in-flight update (for example a diagnostics
// goroutine inspecting Cache.Snapshot() while a refresh is still draining a
// cursor and mutating its own working copy underneath it).
type xsyncContainer[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

// NewXsyncContainer returns a Container[K, V] backed by xsync.MapOf. Pass it
// as Policy.NewContainer to opt a policy into it.
func NewXsyncContainer[K comparable, V any]() Container[K, V] {
	return &xsyncContainer[K, V]{m: xsync.NewMapOf[K, V]()}
}

func (c *xsyncContainer[K, V]) Get(key K) (V, bool) {
	return c.m.Load(key)
}

func (c *xsyncContainer[K, V]) Set(key K, value V) {
	c.m.Store(key, value)
}

func (c *xsyncContainer[K, V]) Delete(key K) {
	c.m.Delete(key)
}

func (c *xsyncContainer[K, V]) Len() int {
	return c.m.Size()
}

func (c *xsyncContainer[K, V]) Range(fn func(key K, value V) bool) {
	c.m.Range(func(k K, v V) bool {
		return fn(k, v)
	})
}

func (c *xsyncContainer[K, V]) Clone() Container[K, V] {
	clone := xsync.NewMapOf[K, V]()
	c.m.Range(func(k K, v V) bool {
		clone.Store(k, v)
		return true
	})
	return &xsyncContainer[K, V]{m: clone}
}
