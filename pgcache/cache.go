package pgcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AllowedUpdateTypes tells a Cache (and the periodic.Scheduler driving it)
// which kinds of Update call are legal for this policy: a policy with no
// update field only ever accepts kind=full.
type AllowedUpdateTypes int

const (
	// AllowFullOnly means every Update call is coerced to UpdateFull.
	AllowFullOnly AllowedUpdateTypes = iota
	// AllowFullAndIncremental means the policy has an UpdatedField and the
	// scheduler may request either kind.
	AllowFullAndIncremental
)

const (
	// defaultFullUpdateTimeout is used when Config.FullUpdateTimeout is zero.
	defaultFullUpdateTimeout = 60 * time.Second
	// defaultIncrementalUpdateTimeout is used when
	// Config.IncrementalUpdateTimeout is zero.
	defaultIncrementalUpdateTimeout = 1 * time.Second
)

// Config is the construction-time configuration of a Cache: where it reads
// from, how long an update may run, and how it chunks a cursor-based fetch.
type Config struct {
	// PGComponent names the database component this cache reads from.
	// Validation requires it to be non-empty; Cache does not otherwise use
	// it. The shards queried come from the ClusterFactory passed to New.
	PGComponent string

	// UpdateCorrection is subtracted from lastUpdate before it is used as the
	// delta query's bound, when a policy has no GetLastKnownUpdated
	// override, guarding against clock skew between the cache host and the
	// database.
	UpdateCorrection time.Duration

	// FullUpdateTimeout bounds a full update's network round trips. Defaults
	// to 60s if zero.
	FullUpdateTimeout time.Duration
	// IncrementalUpdateTimeout bounds an incremental update's network round
	// trips. Defaults to 1s if zero.
	IncrementalUpdateTimeout time.Duration

	// ChunkSize, when greater than 0, makes every fetch go through a
	// server-side cursor fetching at most ChunkSize rows per round trip.
	// Zero disables chunking: each shard is read in one round trip.
	ChunkSize int

	// Logger receives row-decode failures and lifecycle events. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger

	// Clock, if set, replaces time.Now for phase timing. Tests use this to
	// make scopeTimer deterministic. Defaults to time.Now.
	Clock func() time.Time
}

// Validate checks the construction-time contract, returning a *ConfigError
// naming the first violation found. It follows the same chained-field-check
// shape as internal/cacheinfra.Config.Validate.
func (c Config) Validate() error {
	if c.PGComponent == "" {
		return &ConfigError{Field: "PGComponent", Message: "must not be empty"}
	}
	if c.FullUpdateTimeout < 0 {
		return &ConfigError{Field: "FullUpdateTimeout", Message: "must be non-negative"}
	}
	if c.IncrementalUpdateTimeout < 0 {
		return &ConfigError{Field: "IncrementalUpdateTimeout", Message: "must be non-negative"}
	}
	if c.ChunkSize < 0 {
		return &ConfigError{Field: "ChunkSize", Message: "must be non-negative"}
	}
	if c.UpdateCorrection < 0 {
		return &ConfigError{Field: "UpdateCorrection", Message: "must be non-negative: refusing a forward (negative) update correction"}
	}
	return nil
}

func (c Config) fullTimeoutOrDefault() time.Duration {
	if c.FullUpdateTimeout > 0 {
		return c.FullUpdateTimeout
	}
	return defaultFullUpdateTimeout
}

func (c Config) incrementalTimeoutOrDefault() time.Duration {
	if c.IncrementalUpdateTimeout > 0 {
		return c.IncrementalUpdateTimeout
	}
	return defaultIncrementalUpdateTimeout
}

func (c Config) loggerOrDefault() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) clockOrDefault() func() time.Time {
	if c.Clock != nil {
		return c.Clock
	}
	return time.Now
}

// Cache is a policy-driven read-through cache for one query. It owns no connections: it is driven by a
// periodic.Scheduler that calls Update, and reads shards through the
// ClusterFactory/ClusterHandle contracts in db.go.
type Cache[T any, K comparable] struct {
	policy  *Policy[T, K]
	queries queries
	cfg     Config
	logger  *slog.Logger
	clock   func() time.Time

	snapshots *snapshotManager[K, T]
	shards    []ClusterHandle

	fullTimeout        time.Duration
	incrementalTimeout time.Duration
	chunkSize          int
	correction         time.Duration

	relaxIterations int
}

// New constructs a Cache from policy and cfg, enumerating shards from
// factory once and validating both the policy's static contract and the
// configuration before returning.
func New[T any, K comparable](policy Policy[T, K], cfg Config, factory ClusterFactory) (*Cache[T, K], error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shards, err := factory.Shards(context.Background())
	if err != nil {
		return nil, fmt.Errorf("pgcache: enumerate shards for %q: %w", policy.Name, err)
	}
	if len(shards) == 0 {
		return nil, &ConfigError{Field: "ClusterFactory", Message: "returned zero shards"}
	}

	p := policy
	qs := composeQueries(&p)
	logger := cfg.loggerOrDefault()

	logger.Info("cache query composed",
		"cache", p.Name,
		"full_query", qs.full,
		"delta_query", qs.delta,
		"shards", len(shards),
	)

	return &Cache[T, K]{
		policy:             &p,
		queries:            qs,
		cfg:                cfg,
		logger:             logger,
		clock:              cfg.clockOrDefault(),
		snapshots:          newSnapshotManager(p.containerFactory()),
		shards:             shards,
		fullTimeout:        cfg.fullTimeoutOrDefault(),
		incrementalTimeout: cfg.incrementalTimeoutOrDefault(),
		chunkSize:          cfg.ChunkSize,
		correction:         cfg.UpdateCorrection,
	}, nil
}

// Name returns the cache's policy name, used by a periodic.Scheduler as its
// registration key.
func (c *Cache[T, K]) Name() string {
	return c.policy.Name
}

// AllowedUpdateTypes reports whether this cache's policy supports
// incremental updates at all.
func (c *Cache[T, K]) AllowedUpdateTypes() AllowedUpdateTypes {
	if c.policy.wantsIncrementalUpdates() {
		return AllowFullAndIncremental
	}
	return AllowFullOnly
}

// Snapshot returns the currently published container. It returns nil if no
// update has ever succeeded.
func (c *Cache[T, K]) Snapshot() Container[K, T] {
	return c.snapshots.current()
}
