package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/restdb/internal/errs"
)

// PostgreSQL SQLSTATE classes and codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection       = "08"
	pgClassIntegrity        = "23"
	pgClassInvalidAuth      = "28"
	pgInsufficientPrivilege = "42501"
	pgDuplicateTable        = "42P07"
	pgDuplicateColumn       = "42701"
)

// Classify maps pgconn errors onto an error kind.
func (Dialect) Classify(err error) errs.ErrKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		// Fallthrough: connection-level errors (TLS, network, auth)
		return errs.ErrKindConnectionFailed
	}

	switch pgErr.Code {
	case pgInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case pgDuplicateTable, pgDuplicateColumn:
		return errs.ErrKindConflict
	}

	if len(pgErr.Code) < 2 {
		return errs.ErrKindQueryFailed
	}
	switch pgErr.Code[:2] {
	case pgClassConnection:
		return errs.ErrKindConnectionFailed
	case pgClassInvalidAuth:
		return errs.ErrKindPermissionDenied
	case pgClassIntegrity:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
