package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a looked-up row does not exist, so
// services do not depend on gorm directly.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write lost to a concurrent one:
// unique-key violations, serialization failures, deadlocks, and stale
// optimistic version checks. Callers are expected to reread and retry.
var ErrConflict = errors.New("storage conflict")

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return ErrConflict
		}
	}
	return err
}
