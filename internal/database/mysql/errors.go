package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/restdb/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errNoDatabase      = 1046
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errUserTooManyConn = 1203
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
	errBadNull         = 1048
	errTableExists     = 1050
	errDupFieldName    = 1060
)

// Classify maps go-sql-driver/mysql errors onto an error kind.
func (Dialect) Classify(err error) errs.ErrKind {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return errs.ErrKindConnectionFailed
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		// Fallthrough: connection-level errors (TLS, network, auth)
		return errs.ErrKindConnectionFailed
	}

	switch mysqlErr.Number {
	case errDBAccessDenied, errAccessDenied:
		return errs.ErrKindPermissionDenied
	case errNoDatabase, errUnknownDatabase, errTooManyConns, errUserTooManyConn:
		return errs.ErrKindConnectionFailed
	case errDuplicateEntry, errRowIsReferenced, errNoReferencedRow, errBadNull,
		errTableExists, errDupFieldName:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
