package pgcache

import (
	"context"
	"time"
)

// Update runs the update state machine: it decides full vs incremental,
// fans out across shards (streaming rows either in one round-trip or via a
// chunked server-side cursor), decodes and upserts rows into a working
// snapshot, adapts the CPU relax interval, and either publishes the working
// snapshot or discards it.
//
// Update is the callback a periodic.Scheduler invokes on a cadence; the
// scheduler guarantees at most one Update call in flight per Cache, so
// Update itself does no additional locking around c.relaxIterations or the
// snapshot manager's writer side.
func (c *Cache[T, K]) Update(ctx context.Context, kind UpdateType, lastUpdate, now time.Time, stats *Stats) error {
	if !c.policy.wantsIncrementalUpdates() {
		kind = UpdateFull
	}

	query := c.queries.full
	timeout := c.fullTimeout
	if kind == UpdateIncremental {
		query = c.queries.delta
		timeout = c.incrementalTimeout
	}

	scope := newScopeTimer(c.clock)
	scope.Reset(PhaseCopyData)
	working := c.snapshots.makeWorking(kind)

	scope.Reset(PhaseFetch)

	cc := CommandControl{NetworkTimeout: timeout, StatementTimeout: 0}
	hostFlags := c.policy.clusterHostFlags()

	changes := 0
	for shardIdx, shard := range c.shards {
		bound := c.policy.lastKnownUpdated(working, lastUpdate.Add(-c.correction))

		var args []any
		if kind == UpdateIncremental {
			args = []any{bound}
		}

		if c.chunkSize > 0 {
			n, err := c.fetchChunked(ctx, shard, hostFlags, cc, query, args, working, stats, scope)
			if err != nil {
				return &TransportError{Cache: c.policy.Name, Shard: shardIdx, Err: err}
			}
			changes += n
		} else {
			n, err := c.fetchSingleRoundTrip(ctx, shard, hostFlags, cc, query, args, working, stats, scope)
			if err != nil {
				return &TransportError{Cache: c.policy.Name, Shard: shardIdx, Err: err}
			}
			changes += n
		}
	}

	scope.Reset("")
	parseElapsedMS := float64(scope.ElapsedTotal(PhaseParse)) / float64(time.Millisecond)
	c.relaxIterations = adaptRelaxIterations(c.relaxIterations, changes, parseElapsedMS)

	if kind == UpdateFull || changes > 0 {
		c.snapshots.publish(working)
		stats.Finish(working.Len())
	} else {
		stats.FinishNoChanges()
	}
	return nil
}

// fetchSingleRoundTrip executes query in one statement and decodes every
// returned row.
func (c *Cache[T, K]) fetchSingleRoundTrip(
	ctx context.Context, shard ClusterHandle, hostFlags HostFlags, cc CommandControl,
	query string, args []any, working Container[K, T], stats *Stats, scope *scopeTimer,
) (int, error) {
	rows, err := shard.Execute(ctx, hostFlags, cc, query, args...)
	if err != nil {
		return 0, err
	}
	scope.Reset(PhaseParse)
	n, err := c.consumeRows(ctx, rows, working, stats, scope)
	stats.IncreaseDocumentsReadCount(n)
	return n, err
}

// fetchChunked opens a read-only transaction and a server-side cursor over
// query, then repeatedly fetches up to chunkSize rows until a short batch
// signals exhaustion.
func (c *Cache[T, K]) fetchChunked(
	ctx context.Context, shard ClusterHandle, hostFlags HostFlags, cc CommandControl,
	query string, args []any, working Container[K, T], stats *Stats, scope *scopeTimer,
) (int, error) {
	tx, err := shard.Begin(ctx, hostFlags, TxReadOnly, cc)
	if err != nil {
		return 0, err
	}

	portal, err := tx.MakePortal(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	changes := 0
	for {
		scope.Reset(PhaseFetch)
		rows, err := portal.Fetch(ctx, c.chunkSize)
		if err != nil {
			_ = portal.Close(ctx)
			_ = tx.Rollback(ctx)
			return changes, err
		}

		scope.Reset(PhaseParse)
		n, err := c.consumeRows(ctx, rows, working, stats, scope)
		if err != nil {
			_ = portal.Close(ctx)
			_ = tx.Rollback(ctx)
			return changes, err
		}
		stats.IncreaseDocumentsReadCount(n)
		changes += n

		if n < c.chunkSize {
			break
		}
	}

	if err := portal.Close(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return changes, err
	}
	if err := tx.Commit(ctx); err != nil {
		return changes, err
	}
	return changes, nil
}

// consumeRows decodes every row in rows, upserting successes into working
// and counting (but not failing on) decode errors.
func (c *Cache[T, K]) consumeRows(ctx context.Context, rows Rows, working Container[K, T], stats *Stats, scope *scopeTimer) (int, error) {
	defer rows.Close()

	tags := cacheTagsFromContext(ctx)
	relax := newRelaxer(c.relaxIterations)
	count := 0
	for rows.Next() {
		relax.Relax()
		count++

		value, err := c.policy.decode(rows)
		if err != nil {
			stats.IncreaseParseFailures(1)
			decodeErr := &RowDecodeError{Cache: c.policy.Name, TargetType: c.policy.targetTypeName(), Err: err}
			c.logger.Error("row decode failed",
				"cache", c.policy.Name,
				"type", c.policy.targetTypeName(),
				"tags", tags,
				"error", decodeErr,
			)
			continue
		}

		key := c.policy.KeyMember(value)
		working.Set(key, value)
	}
	if err := rows.Err(); err != nil {
		return count, err
	}
	return count, nil
}
