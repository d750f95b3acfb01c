package pgexec

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goliatone/go-pg-cache/pgcache"
)

// StaticFactory is a pgcache.ClusterFactory over a fixed, caller-ordered set
// of shard DSNs. Shard order is the slice index, preserved verbatim across
// every call to Shards.
type StaticFactory struct {
	shards []pgcache.ClusterHandle
}

// NewStaticFactory opens one *sql.DB per dsn, in order, and wraps each in a
// Cluster. A failure to open any shard closes the ones already opened and
// returns the error.
func NewStaticFactory(dsns []string) (*StaticFactory, error) {
	shards := make([]pgcache.ClusterHandle, 0, len(dsns))
	for i, dsn := range dsns {
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			closeShards(shards)
			return nil, fmt.Errorf("pgexec: open shard %d: %w", i, err)
		}
		shards = append(shards, NewCluster(sqlDB))
	}
	return &StaticFactory{shards: shards}, nil
}

// NewStaticFactoryFromDBs wraps already-open *sql.DB handles, in order. This
// is the constructor tests and hosts with their own pooling use instead of
// NewStaticFactory.
func NewStaticFactoryFromDBs(dbs []*sql.DB) *StaticFactory {
	shards := make([]pgcache.ClusterHandle, 0, len(dbs))
	for _, db := range dbs {
		shards = append(shards, NewCluster(db))
	}
	return &StaticFactory{shards: shards}
}

func (f *StaticFactory) Shards(ctx context.Context) ([]pgcache.ClusterHandle, error) {
	return f.shards, nil
}

func closeShards(shards []pgcache.ClusterHandle) {
	for _, s := range shards {
		if c, ok := s.(*Cluster); ok {
			_ = c.db.Close()
		}
	}
}
