// Package dbutil translates driver-level database errors into the engine's
// typed error kinds so store callers never match on gorm or pgx internals.
package dbutil

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	commonerr "github.com/quantfabric/swapflow/common/errors"
)

// duplicateKeyCode is the Postgres unique-violation SQLSTATE.
const duplicateKeyCode = "23505"

// Wrap classifies a database error. Errors already carrying a kind pass
// through untouched.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var typed *commonerr.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return commonerr.Wrap(commonerr.KindNotFound, err, format, args...)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == duplicateKeyCode {
		return commonerr.Wrap(commonerr.KindConflict, err, format, args...)
	}
	return commonerr.Wrap(commonerr.KindInternal, err, format, args...)
}

// FindOne runs the query and returns the single matching row, classifying a
// missing row as NOT_FOUND rather than returning a zero value.
func FindOne[T any](q *gorm.DB, format string, args ...any) (*T, error) {
	var item T
	result := q.Find(&item)
	if result.Error != nil {
		return nil, Wrap(result.Error, format, args...)
	}
	if result.RowsAffected == 0 {
		return nil, commonerr.E(commonerr.KindNotFound, format, args...)
	}
	return &item, nil
}
