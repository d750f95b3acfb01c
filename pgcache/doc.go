// Package pgcache implements a policy-driven, read-through cache that
// periodically materializes the result of a SQL query into an in-memory
// keyed container and serves lock-free read snapshots to callers.
//
// # Overview
//
// A pgcache.Cache[T, K] is built from a Policy[T, K] describing:
//
//   - the row type T and the key type K used to index it
//   - the query that produces the full table and, optionally, the column
//     used to fetch only rows updated since the last run
//   - how to turn a row into a key (KeyMember)
//
// The cache owns no network connection itself. It is driven by an external
// scheduler (see package periodic) that invokes Update on a cadence, and it
// reads from shard clusters through the ClusterFactory/ClusterHandle
// contracts in db.go, which internal/pgexec implements on top of bun and
// lib/pq.
//
// # Basic usage
//
//	policy := pgcache.Policy[Product, string]{
//		Name:         "products",
//		QueryText:    "select id, name, updated_at from products",
//		UpdatedField: "updated_at",
//		ScanRaw: func(row pgcache.Row) (any, error) {
//			var p Product
//			err := row.Scan(&p.ID, &p.Name, &p.UpdatedAt)
//			return p, err
//		},
//		KeyMember: func(p Product) string { return p.ID },
//	}
//	c, err := pgcache.New(policy, pgcache.Config{PGComponent: "main-db"}, factory)
//	...
//	snapshot := c.Snapshot()
//	product, ok := snapshot.Get(id)
//
// # Full vs incremental updates
//
// A full update discards the working container and refetches every row. An
// incremental update starts from a deep copy of the published snapshot and
// upserts rows newer than the last known high-water mark. See driver.go for
// the state machine and snapshot.go for how the working copy is produced
// and published.
package pgcache
