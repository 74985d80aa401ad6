package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

// IsUniqueViolation reports a unique constraint failure. Postgres errors are
// matched on SQLSTATE and constraint name; anything else (sqlite in tests)
// falls back to the driver's message text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg := pkgerrors.PostgresDetailOf(err); pg != nil {
		return pg.SQLState == pkgerrors.SQLStateUniqueViolation &&
			(constraintName == "" || pg.Constraint == constraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == "" || strings.Contains(err.Error(), constraintName)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
