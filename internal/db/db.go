package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the narrow database surface injected into services. It is
// satisfied by *pgxpool.Pool and by pgx.Tx, so code written against it
// works both inside and outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is a DB that can also open transactions. The migration
// runner needs this; read-only consumers should depend on DB instead.
type TxBeginner interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}
