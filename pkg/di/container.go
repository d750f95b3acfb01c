// Package di wires together the pieces a host application assembles by
// hand: a shared logger, a periodic.Scheduler, and the sturdyc-backed
// lookup configuration, so that registering a new pgcache.Cache is a
// one-call affair instead of repeating that wiring at every call site.
package di

import (
	"fmt"
	"log/slog"

	gocache "github.com/goliatone/go-pg-cache/cache"
	"github.com/goliatone/go-pg-cache/periodic"
	"github.com/goliatone/go-pg-cache/pgcache"
)

// Container provides dependency injection for the cache components a host
// application needs: a scheduler shared across every registered cache, a
// logger defaulted once, and the sturdyc lookup configuration used by
// NewLookup.
type Container struct {
	scheduler periodic.Scheduler
	logger    *slog.Logger
	lookupCfg gocache.Config
}

// NewContainer creates a new DI container using lookupCfg for any Lookup
// built through it. logger defaults to slog.Default() if nil.
func NewContainer(lookupCfg gocache.Config, logger *slog.Logger) (*Container, error) {
	if err := lookupCfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		scheduler: periodic.NewTickerScheduler(logger),
		logger:    logger,
		lookupCfg: lookupCfg,
	}, nil
}

// NewContainerWithDefaults creates a container using gocache.DefaultConfig()
// and slog.Default().
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(gocache.DefaultConfig(), nil)
}

// Scheduler returns the singleton periodic.Scheduler instance. Every cache
// registered through NewCache shares it, so Invariant 2 (no two
// Update calls for the same cache name overlap) holds across the whole
// container, not just within one cache.
func (c *Container) Scheduler() periodic.Scheduler {
	return c.scheduler
}

// Logger returns the container's shared logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// LookupConfig returns a copy of the sturdyc configuration used by
// NewLookup.
func (c *Container) LookupConfig() gocache.Config {
	return c.lookupCfg
}

// NewCache builds a pgcache.Cache from policy, cfg and factory, defaulting
// cfg.Logger to the container's logger when unset, and registers it with
// the container's scheduler under opts.
//
// Since Go methods cannot have type parameters, this is a package-level
// function. Example: di.NewCache[Product, int](container, policy, cfg,
// factory, opts).
func NewCache[T any, K comparable](container *Container, policy pgcache.Policy[T, K], cfg pgcache.Config, factory pgcache.ClusterFactory, opts periodic.Options) (*pgcache.Cache[T, K], error) {
	if cfg.Logger == nil {
		cfg.Logger = container.logger
	}

	c, err := pgcache.New(policy, cfg, factory)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = container.logger
	}
	if err := container.scheduler.StartPeriodicUpdates(c, opts); err != nil {
		return nil, fmt.Errorf("di: register cache %q with scheduler: %w", c.Name(), err)
	}
	return c, nil
}

// NewLookup builds a pgcache.Lookup over c using the container's lookup
// configuration.
func NewLookup[K comparable, V any](container *Container, c *pgcache.Cache[V, K]) (*pgcache.Lookup[K, V], error) {
	return pgcache.NewLookup[K, V](c, container.lookupCfg)
}
