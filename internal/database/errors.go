package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/koustreak/restdb/internal/errs"
)

// integrityPatterns classify constraint failures by the text of the driver
// error. Each engine words these differently and the checks are ordered:
// duplicates first, then any remaining constraint failure.
var integrityPatterns = []struct {
	substr string
	code   errs.Code
}{
	{"duplicate", errs.CodeDuplicateKey},
	{"unique constraint", errs.CodeDuplicateKey},
	{"default value", errs.CodeDataIntegrityViolation},
	{"allow nulls", errs.CodeDataIntegrityViolation},
	{"constraint", errs.CodeDataIntegrityViolation},
}

// mapError translates a driver error into *errs.Error.
func (db *DB) mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	if code := IntegrityCode(err); code != 0 {
		return errs.CodedWrap(code, err)
	}

	return errs.Wrap(db.dialect.Classify(err), msg, err)
}

// IntegrityCode returns the duplicate-key or integrity-violation code the
// error text matches, or zero.
func IntegrityCode(err error) errs.Code {
	text := strings.ToLower(err.Error())
	for _, p := range integrityPatterns {
		if strings.Contains(text, p.substr) {
			return p.code
		}
	}
	return 0
}
