package pgcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type product struct {
	ID   int
	Name string
}

func testPolicy(updatedField string) Policy[product, int] {
	return Policy[product, int]{
		Name:         "products",
		QueryText:    "select id, name from products",
		UpdatedField: updatedField,
		ScanRaw: func(row Row) (any, error) {
			var p product
			err := row.Scan(&p.ID, &p.Name)
			return p, err
		},
		KeyMember: func(p product) int { return p.ID },
	}
}

func newTestCache(t *testing.T, policy Policy[product, int], shards ...ClusterHandle) *Cache[product, int] {
	t.Helper()
	c, err := New(policy, Config{
		PGComponent:       "main-db",
		FullUpdateTimeout: time.Second,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &fakeFactory{shards: shards})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestUpdate_FullSingleRoundTrip(t *testing.T) {
	shard := &fakeShard{executeRows: []rowScanFn{
		scanRow(1, "a"),
		scanRow(2, "b"),
		scanRow(3, "c"),
	}}
	c := newTestCache(t, testPolicy(""), shard)

	stats := NewStats()
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := stats.DocumentsRead(); got != 3 {
		t.Errorf("DocumentsRead = %d, want 3", got)
	}
	if got := stats.ParseFailures(); got != 0 {
		t.Errorf("ParseFailures = %d, want 0", got)
	}
	snap := c.Snapshot()
	if snap == nil || snap.Len() != 3 {
		t.Fatalf("snapshot len = %v, want 3", snap)
	}
}

func TestUpdate_RowDecodeFailureIsCountedNotFatal(t *testing.T) {
	shard := &fakeShard{executeRows: []rowScanFn{
		scanRow(1, "a"),
		failingRow(),
		scanRow(3, "c"),
	}}
	c := newTestCache(t, testPolicy(""), shard)

	stats := NewStats()
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := stats.DocumentsRead(); got != 3 {
		t.Errorf("DocumentsRead = %d, want 3", got)
	}
	if got := stats.ParseFailures(); got != 1 {
		t.Errorf("ParseFailures = %d, want 1", got)
	}
	if got := c.Snapshot().Len(); got != 2 {
		t.Errorf("snapshot len = %d, want 2", got)
	}
}

func TestUpdate_IncrementalNoChangesKeepsPreviousSnapshot(t *testing.T) {
	shard := &fakeShard{}
	c := newTestCache(t, testPolicy("updated_at"), shard)

	// Seed a published snapshot via one full update.
	shard.executeRows = []rowScanFn{scanRow(1, "a")}
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), NewStats()); err != nil {
		t.Fatalf("seed Update: %v", err)
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Fatalf("seed snapshot len = %d, want 1", got)
	}

	// Incremental update returns zero rows.
	shard.executeRows = nil
	stats := NewStats()
	if err := c.Update(context.Background(), UpdateIncremental, time.Now(), time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !stats.NoChanges() {
		t.Error("expected NoChanges to be true")
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Errorf("snapshot len after no-op incremental = %d, want 1 (unchanged)", got)
	}
}

func TestUpdate_ChunkedFetchStopsOnShortBatch(t *testing.T) {
	shard := &fakeShard{portalRows: []rowScanFn{
		scanRow(1, "a"),
		scanRow(2, "b"),
		scanRow(3, "c"),
		scanRow(4, "d"),
		scanRow(5, "e"),
	}}
	c, err := New(testPolicy(""), Config{
		PGComponent:       "main-db",
		FullUpdateTimeout: time.Second,
		ChunkSize:         2,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &fakeFactory{shards: []ClusterHandle{shard}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stats := NewStats()
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := stats.DocumentsRead(); got != 5 {
		t.Errorf("DocumentsRead = %d, want 5", got)
	}
	if len(shard.portals) != 1 {
		t.Fatalf("expected exactly one portal, got %d", len(shard.portals))
	}
	want := []int{2, 2, 1}
	got := shard.portals[0].fetches
	if len(got) != len(want) {
		t.Fatalf("Fetch call sizes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fetch call %d = %d, want %d", i, got[i], want[i])
		}
	}
	if !shard.committed {
		t.Error("expected transaction to be committed")
	}
	if !shard.portalClosed {
		t.Error("expected portal to be closed")
	}
}

func TestUpdate_TransportErrorAbortsAndKeepsPreviousSnapshot(t *testing.T) {
	good := &fakeShard{executeRows: []rowScanFn{scanRow(1, "a")}}
	c := newTestCache(t, testPolicy(""), good)
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), NewStats()); err != nil {
		t.Fatalf("seed Update: %v", err)
	}

	good.executeErr = errFakeTransport
	err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), NewStats())
	var prevTE *TransportError
	if !errors.As(err, &prevTE) {
		t.Fatalf("Update err = %v, want *TransportError", err)
	}
	if c.Snapshot() == nil || c.Snapshot().Len() != 1 {
		t.Errorf("previous snapshot should stay published after a transport error, got %v", c.Snapshot())
	}

	failing := &fakeShard{executeErr: errFakeTransport}
	c2, err := New(testPolicy(""), Config{
		PGComponent:       "main-db",
		FullUpdateTimeout: time.Second,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &fakeFactory{shards: []ClusterHandle{failing}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c2.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), NewStats())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Update err = %v, want *TransportError", err)
	}
	if c2.Snapshot() != nil {
		t.Errorf("snapshot should remain unpublished after a transport error, got %v", c2.Snapshot())
	}
}

func TestUpdate_IncrementalMergesIntoPreviousSnapshot(t *testing.T) {
	shard := &fakeShard{}
	c := newTestCache(t, testPolicy("updated_at"), shard)

	// Seed a published snapshot of {1: (1, "a")} via one full update.
	shard.executeRows = []rowScanFn{scanRow(1, "a")}
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), NewStats()); err != nil {
		t.Fatalf("seed Update: %v", err)
	}

	// Incremental update returns an update to key 1 and a brand-new key 3.
	shard.executeRows = []rowScanFn{scanRow(1, "a'"), scanRow(3, "c")}
	stats := NewStats()
	if err := c.Update(context.Background(), UpdateIncremental, time.Now(), time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if stats.NoChanges() {
		t.Error("expected NoChanges to be false: the delta returned rows")
	}

	snap := c.Snapshot()
	if got := snap.Len(); got != 2 {
		t.Fatalf("snapshot len = %d, want 2", got)
	}
	p1, ok := snap.Get(1)
	if !ok || p1.Name != "a'" {
		t.Errorf("key 1 = %+v, ok=%v, want {1 a'}", p1, ok)
	}
	p3, ok := snap.Get(3)
	if !ok || p3.Name != "c" {
		t.Errorf("key 3 = %+v, ok=%v, want {3 c}", p3, ok)
	}
}

func TestUpdate_TwoShardFanIn(t *testing.T) {
	shard1 := &fakeShard{executeRows: []rowScanFn{scanRow(1, "a")}}
	shard2 := &fakeShard{executeRows: []rowScanFn{scanRow(2, "b")}}
	c := newTestCache(t, testPolicy(""), shard1, shard2)

	stats := NewStats()
	if err := c.Update(context.Background(), UpdateFull, time.Time{}, time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := stats.DocumentsRead(); got != 2 {
		t.Errorf("DocumentsRead = %d, want 2", got)
	}
	snap := c.Snapshot()
	if got := snap.Len(); got != 2 {
		t.Fatalf("snapshot len = %d, want 2", got)
	}
	if _, ok := snap.Get(1); !ok {
		t.Error("missing key 1 from shard1")
	}
	if _, ok := snap.Get(2); !ok {
		t.Error("missing key 2 from shard2")
	}
}

func TestUpdate_PolicyWithoutUpdatedFieldIsCoercedToFull(t *testing.T) {
	shard := &fakeShard{executeRows: []rowScanFn{scanRow(1, "a")}}
	c := newTestCache(t, testPolicy(""), shard)

	stats := NewStats()
	if err := c.Update(context.Background(), UpdateIncremental, time.Time{}, time.Now(), stats); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if stats.NoChanges() {
		t.Error("a coerced full update should never report NoChanges on first run")
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Errorf("snapshot len = %d, want 1", got)
	}
}
