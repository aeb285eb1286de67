// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// mapPgError attaches an error code for the PostgreSQL error classes the
// store can act on. Everything else passes through for the caller's
// operation wrapper.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return oops.Code("DUPLICATE_KEY").With("constraint", pgErr.ConstraintName).Wrap(err)
	case pgerrcode.ForeignKeyViolation:
		return oops.Code("MISSING_REFERENCE").With("constraint", pgErr.ConstraintName).Wrap(err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return oops.Code("TX_CONFLICT").Wrap(err)
	}
	return err
}
