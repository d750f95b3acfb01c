// Package pgexec implements pgcache's database contract (ClusterHandle,
// Transaction, Portal, ClusterFactory) on top of bun.DB/bun.Tx and
// database/sql: a *sql.DB is wrapped in a bun.DB and transactions are
// driven with bun's BeginTx plus raw SQL (QueryContext, ExecContext). Row
// iteration for chunked fetches uses bun.Tx's embedded *sql.Tx.QueryContext
// directly, since pgcache.Rows is satisfied by *sql.Rows without
// adaptation.
//
// github.com/lib/pq is registered as the database/sql driver via a blank
// import, opened with sql.Open("postgres", dsn).
package pgexec
