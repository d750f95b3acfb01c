package di

import (
	"context"

	"github.com/goliatone/go-pg-cache/pgcache"
)

// rowScanFn plays the role of Scan(dest...) for one fake row.
type rowScanFn func(dest ...any) error

func scanProductRow(id int, name string) rowScanFn {
	return func(dest ...any) error {
		*dest[0].(*int) = id
		*dest[1].(*string) = name
		return nil
	}
}

type fakeRows struct {
	rows []rowScanFn
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.idx-1](dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close() error           { return nil }

// fakeShard is a single-round-trip-only pgcache.ClusterHandle: enough to
// drive a full Update without standing up a real database.
type fakeShard struct {
	rows []rowScanFn
}

func (s *fakeShard) Execute(ctx context.Context, hostFlags pgcache.HostFlags, cc pgcache.CommandControl, query string, args ...any) (pgcache.Rows, error) {
	return &fakeRows{rows: s.rows}, nil
}

func (s *fakeShard) Begin(ctx context.Context, hostFlags pgcache.HostFlags, mode pgcache.TxMode, cc pgcache.CommandControl) (pgcache.Transaction, error) {
	panic("fakeShard: chunked fetch not exercised by di tests")
}

type fakeFactory struct {
	shards []pgcache.ClusterHandle
}

func (f *fakeFactory) Shards(ctx context.Context) ([]pgcache.ClusterHandle, error) {
	return f.shards, nil
}
