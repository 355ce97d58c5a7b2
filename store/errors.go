package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrUnauthenticated is returned when the context carries no session.
	ErrUnauthenticated = errors.New("store: no active session")

	// ErrUnavailable wraps every transport or database failure.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrConcurrentModification is returned when a ledger write kept losing
	// the version race after all retries.
	ErrConcurrentModification = errors.New("store: concurrent modification")

	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("store: duplicate record")

	// ErrNoop may be returned by a MutateFunc to commit nothing.
	ErrNoop = errors.New("store: nothing to write")

	ErrFieldNotWritable  = errors.New("store: field is not writable")
	ErrImmutable         = errors.New("store: collection is append-only")
	ErrUnknownCollection = errors.New("store: unknown collection")
	ErrInvalidQuery      = errors.New("store: invalid query")
)

// errVersionConflict signals a lost optimistic-concurrency race inside one
// attempt; MutateUser turns it into a retry.
var errVersionConflict = errors.New("store: version conflict")

// classify maps a gorm or driver error onto the store taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate), errors.Is(err, ErrUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// retryable reports whether a read may be attempted again. Parent context
// cancellation is never retried.
func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrUnavailable)
}
