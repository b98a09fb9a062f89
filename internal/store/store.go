// Package store issues the persistence calls the pipeline depends on: the
// client upsert-by-business-key and the contact bulk insert. Both operate
// inside a transaction owned by the caller, so one batch or one fallback
// record stays a single atomic unit.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx, and the pgxmock pool.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client is the owning entity a contact row references, keyed by its
// business client number.
type Client struct {
	Number      string
	Profile     string
	Status      string
	CompanyName string
}
