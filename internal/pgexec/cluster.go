package pgexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	_ "github.com/lib/pq"

	"github.com/goliatone/go-pg-cache/pgcache"
)

// Cluster adapts a single *sql.DB (one shard) to pgcache.ClusterHandle. Every
// statement runs with statement_timeout forced off and the network timeout
// from CommandControl enforced via a context deadline.
type Cluster struct {
	db *bun.DB
}

// NewCluster wraps sqlDB (already sql.Open("postgres", dsn)'d) in a bun.DB
// using the Postgres dialect.
func NewCluster(sqlDB *sql.DB) *Cluster {
	return &Cluster{db: bun.NewDB(sqlDB, pgdialect.New())}
}

func withNetworkTimeout(ctx context.Context, cc pgcache.CommandControl) (context.Context, context.CancelFunc) {
	if cc.NetworkTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cc.NetworkTimeout)
}

// Execute runs query in a single round trip and returns every row.
func (c *Cluster) Execute(ctx context.Context, hostFlags pgcache.HostFlags, cc pgcache.CommandControl, query string, args ...any) (pgcache.Rows, error) {
	ctx, cancel := withNetworkTimeout(ctx, cc)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, "set statement_timeout = 0"); err != nil {
		return nil, fmt.Errorf("pgexec: disable statement_timeout: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgexec: execute: %w", err)
	}
	return rows, nil
}

// Begin opens a transaction for a chunked, cursor-based fetch.
func (c *Cluster) Begin(ctx context.Context, hostFlags pgcache.HostFlags, mode pgcache.TxMode, cc pgcache.CommandControl) (pgcache.Transaction, error) {
	ctx, cancel := withNetworkTimeout(ctx, cc)
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: mode == pgcache.TxReadOnly})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pgexec: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "set local statement_timeout = 0"); err != nil {
		_ = tx.Rollback()
		cancel()
		return nil, fmt.Errorf("pgexec: disable statement_timeout: %w", err)
	}
	return &transaction{tx: tx, ctx: ctx, cancel: cancel}, nil
}

// transaction adapts bun.Tx to pgcache.Transaction. The context captured at
// Begin time (already bound to CommandControl's network timeout) is reused
// for every subsequent MakePortal/Fetch/Commit call on this transaction.
type transaction struct {
	tx     bun.Tx
	ctx    context.Context
	cancel context.CancelFunc
}

// MakePortal declares a server-side cursor over query, named uniquely per
// call so concurrently open cursors on the same connection never collide.
func (t *transaction) MakePortal(ctx context.Context, query string, args ...any) (pgcache.Portal, error) {
	name := cursorName()
	stmt := fmt.Sprintf("declare %s no scroll cursor for %s", name, query)
	if _, err := t.tx.ExecContext(t.ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("pgexec: declare cursor: %w", err)
	}
	return &portal{tx: t.tx, ctx: t.ctx, name: name}, nil
}

func (t *transaction) Commit(ctx context.Context) error {
	defer t.cancel()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("pgexec: commit: %w", err)
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	defer t.cancel()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("pgexec: rollback: %w", err)
	}
	return nil
}

// portal is a named server-side cursor fetched in bounded chunks.
type portal struct {
	tx   bun.Tx
	ctx  context.Context
	name string
}

func (p *portal) Fetch(ctx context.Context, n int) (pgcache.Rows, error) {
	rows, err := p.tx.QueryContext(p.ctx, fmt.Sprintf("fetch %d from %s", n, p.name))
	if err != nil {
		return nil, fmt.Errorf("pgexec: fetch: %w", err)
	}
	return rows, nil
}

func (p *portal) Close(ctx context.Context) error {
	if _, err := p.tx.ExecContext(p.ctx, fmt.Sprintf("close %s", p.name)); err != nil {
		return fmt.Errorf("pgexec: close cursor: %w", err)
	}
	return nil
}

// cursorName returns a cursor identifier unique enough to never collide
// with a concurrently open portal on the same connection.
func cursorName() string {
	return "pgcache_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
}
