package sqlserver

import (
	"errors"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/koustreak/restdb/internal/errs"
)

// SQL Server error numbers
// Full list: https://learn.microsoft.com/en-us/sql/relational-databases/errors-events/database-engine-events-and-errors
const (
	errLoginFailed       = 18456
	errCannotOpenDB      = 4060
	errPermissionDenied  = 229
	errUniqueIndex       = 2601
	errUniqueConstraint  = 2627
	errConstraintFailed  = 547
	errCannotInsertNull  = 515
	errObjectExists      = 2714
	errColumnNamesUnique = 2705
)

// Classify maps go-mssqldb errors onto an error kind.
func (Dialect) Classify(err error) errs.ErrKind {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		// Fallthrough: connection-level errors (TLS, network, auth)
		return errs.ErrKindConnectionFailed
	}

	switch msErr.Number {
	case errLoginFailed, errCannotOpenDB:
		return errs.ErrKindConnectionFailed
	case errPermissionDenied:
		return errs.ErrKindPermissionDenied
	case errUniqueIndex, errUniqueConstraint, errConstraintFailed, errCannotInsertNull,
		errObjectExists, errColumnNamesUnique:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
