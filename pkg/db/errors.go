package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure. When
// constraintName is set the violated constraint (or index) must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == "" || strings.Contains(err.Error(), constraintName)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	msg := err.Error()
	// sqlite names the columns, not the index.
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsNotFound reports whether a lookup found no row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
