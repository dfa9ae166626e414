// Package storage provides common storage interfaces shared by the
// concrete store backends under pkg/storage/.
package storage

import (
	"context"
	"database/sql"
)

// Querier abstracts database query execution so callers can be handed either
// a *sql.DB or a *sql.Tx interchangeably.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DBProvider provides access to the underlying database connection.
type DBProvider interface {
	DB() *sql.DB
	Querier(ctx context.Context) Querier
}
