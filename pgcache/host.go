package pgcache

import (
	"context"
	"time"
)

// Host is the non-generic surface a periodic.Scheduler drives: every
// *Cache[T, K] satisfies it regardless of T and K, since none of these
// methods mention either type parameter.
type Host interface {
	Name() string
	AllowedUpdateTypes() AllowedUpdateTypes
	Update(ctx context.Context, kind UpdateType, lastUpdate, now time.Time, stats *Stats) error
}

var _ Host = (*Cache[struct{}, int])(nil)
