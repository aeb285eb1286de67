// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier abstracts query execution for *pgxpool.Pool, pgx.Tx, and pgxmock.
// This allows repository methods to work within or outside of transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey is the context key under which Transactor stores the active pgx.Tx.
type txKey struct{}

// executorFrom returns the transaction stored in ctx, or the pool when no
// transaction is active.
func executorFrom(ctx context.Context, pool querier) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

var _ querier = (*pgxpool.Pool)(nil)
