package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// Data access failures
	ErrProductNotFound   = errors.New("product not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrPromocodeNotFound = errors.New("promocode not found")

	// Stock invariant failures
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrProductUnpurchasable = errors.New("product not purchasable")

	// Promocode validation failures
	ErrPromocodeInactive     = errors.New("promocode is inactive")
	ErrPromocodeExpired      = errors.New("promocode has expired")
	ErrPromocodeExhausted    = errors.New("promocode is exhausted")
	ErrPromocodeAlreadyUsed  = errors.New("promocode already used by this user")
	ErrPromocodeBelowMinimum = errors.New("order amount below promocode minimum")

	// Transaction outcomes
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// txRetries is the number of additional attempts after a retryable failure
const txRetries = 1

// withTx runs fn inside a transaction. Serialization failures and transient
// connection errors are retried once, then surfaced as ErrConcurrencyConflict
// or ErrStorageUnavailable. Business errors returned by fn roll back and pass
// through untouched.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= txRetries; attempt++ {
		err = runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) && !isConnectionFailure(err) {
			return err
		}
	}

	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func runTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isSerializationFailure reports whether err is a PostgreSQL serialization
// failure or deadlock, both safe to retry after rollback
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isConnectionFailure reports whether err looks like a transient connection
// problem (SQLSTATE class 08 or a stale pooled connection)
func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

// isUniqueViolation reports whether err is a unique constraint violation on
// the named constraint or index
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
