package pgcache

import (
	"context"
	"errors"
)

// rowScanFn is one fake row: calling it plays the role of Scan(dest...).
type rowScanFn func(dest ...any) error

type fakeRows struct {
	rows []rowScanFn
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.idx-1](dest...)
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { return nil }

type fakePortal struct {
	shard     *fakeShard
	remaining []rowScanFn
	// fetches records how many rows each Fetch call returned.
	fetches []int
}

func (p *fakePortal) Fetch(ctx context.Context, n int) (Rows, error) {
	if p.shard.fetchErr != nil {
		p.fetches = append(p.fetches, 0)
		return nil, p.shard.fetchErr
	}
	if n > len(p.remaining) {
		n = len(p.remaining)
	}
	p.fetches = append(p.fetches, n)
	batch := p.remaining[:n]
	p.remaining = p.remaining[n:]
	return &fakeRows{rows: batch}, nil
}

func (p *fakePortal) Close(ctx context.Context) error {
	p.shard.portalClosed = true
	return nil
}

type fakeTx struct {
	shard *fakeShard
}

func (tx *fakeTx) MakePortal(ctx context.Context, query string, args ...any) (Portal, error) {
	tx.shard.portalQueries = append(tx.shard.portalQueries, query)
	tx.shard.portalArgs = append(tx.shard.portalArgs, args)
	if tx.shard.makePortalErr != nil {
		return nil, tx.shard.makePortalErr
	}
	p := &fakePortal{shard: tx.shard, remaining: append([]rowScanFn(nil), tx.shard.portalRows...)}
	tx.shard.portals = append(tx.shard.portals, p)
	return p, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.shard.committed = true
	return tx.shard.commitErr
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.shard.rolledBack = true
	return nil
}

// fakeShard is a single-shard ClusterHandle backed by in-memory rows,
// either for a single-round-trip Execute or for a chunked cursor fetch.
type fakeShard struct {
	// executeRows is returned by Execute.
	executeRows []rowScanFn
	executeErr  error
	executeArgs []any

	// portalRows is what a MakePortal'd cursor fetches from.
	portalRows    []rowScanFn
	beginErr      error
	makePortalErr error
	fetchErr      error
	commitErr     error

	portals       []*fakePortal
	portalQueries []string
	portalArgs    [][]any
	committed     bool
	rolledBack    bool
	portalClosed  bool
}

func (s *fakeShard) Execute(ctx context.Context, hostFlags HostFlags, cc CommandControl, query string, args ...any) (Rows, error) {
	s.executeArgs = args
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	return &fakeRows{rows: s.executeRows}, nil
}

func (s *fakeShard) Begin(ctx context.Context, hostFlags HostFlags, mode TxMode, cc CommandControl) (Transaction, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &fakeTx{shard: s}, nil
}

type fakeFactory struct {
	shards []ClusterHandle
	err    error
}

func (f *fakeFactory) Shards(ctx context.Context) ([]ClusterHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shards, nil
}

var errFakeTransport = errors.New("fake transport failure")

// scanRow builds a rowScanFn copying values into whatever *string/*int
// pointers dest holds, in order. Test rows are small tuples of (id, name).
func scanRow(values ...any) rowScanFn {
	return func(dest ...any) error {
		if len(dest) != len(values) {
			return errors.New("scanRow: dest/values arity mismatch")
		}
		for i, v := range values {
			switch d := dest[i].(type) {
			case *string:
				s, ok := v.(string)
				if !ok {
					return errors.New("scanRow: expected string")
				}
				*d = s
			case *int:
				n, ok := v.(int)
				if !ok {
					return errors.New("scanRow: expected int")
				}
				*d = n
			default:
				return errors.New("scanRow: unsupported destination type")
			}
		}
		return nil
	}
}

// failingRow always fails to scan, simulating a row that fails to decode.
func failingRow() rowScanFn {
	return func(dest ...any) error {
		return errors.New("scan failed")
	}
}
