package db

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// IsUniqueConstraintError reports whether err came from a unique or primary
// key constraint violation. The users.email unique constraint is the
// authoritative duplicate-registration guard, so callers translate this to a
// conflict rather than an internal error.
func IsUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
