package pgcache

import (
	"context"
	"time"
)

// TxMode selects the isolation/access mode of a transaction opened for a
// chunked (cursor-based) fetch. Only read-only transactions are used by
// this module.
type TxMode int

const (
	TxReadOnly TxMode = iota
)

// CommandControl carries the per-statement network timeout used for a
// query or cursor fetch. StatementTimeout is always forced to 0 ("off") by
// the driver before use; only NetworkTimeout is actually enforced.
type CommandControl struct {
	NetworkTimeout   time.Duration
	StatementTimeout time.Duration
}

// Rows is a forward-only cursor over decoded database rows, satisfied by
// *sql.Rows (and so by whatever bun's raw-SQL query methods return).
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// ClusterHandle is one shard's database endpoint. internal/pgexec implements it on top of bun.DB/database/sql.
type ClusterHandle interface {
	// Execute runs query in a single round trip and returns all rows.
	Execute(ctx context.Context, hostFlags HostFlags, cc CommandControl, query string, args ...any) (Rows, error)
	// Begin opens a transaction for a chunked, cursor-based fetch.
	Begin(ctx context.Context, hostFlags HostFlags, mode TxMode, cc CommandControl) (Transaction, error)
}

// Transaction is a single database transaction supporting server-side
// cursors (Portals).
type Transaction interface {
	MakePortal(ctx context.Context, query string, args ...any) (Portal, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Portal is a server-side cursor yielding rows in bounded chunks.
type Portal interface {
	// Fetch returns up to n rows. A result with zero rows means the portal
	// is exhausted.
	Fetch(ctx context.Context, n int) (Rows, error)
	Close(ctx context.Context) error
}

// ClusterFactory enumerates the shard clusters a Cache fans out across. The
// order returned is used as the iteration order for every subsequent
// update.
type ClusterFactory interface {
	Shards(ctx context.Context) ([]ClusterHandle, error)
}
