package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TxFunc runs inside a database transaction. Returning an error rolls back.
type TxFunc func(tx *sqlx.Tx) error

// TxRunner executes read-decide-write sequences as one atomic unit. All
// balance-affecting operations must go through the same runner so the ledger
// invariant holds under concurrent access.
type TxRunner interface {
	RunInTx(ctx context.Context, fn TxFunc) error
}

// Postgres serialization_failure and deadlock_detected class codes.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// ErrTxConflict is returned when the store reports a concurrency conflict.
// Callers may retry the whole operation from the first read.
var ErrTxConflict = errors.New("transaction conflict")

// SQLTxRunner wraps *sqlx.DB with serializable transactions.
type SQLTxRunner struct {
	db        *sqlx.DB
	isolation sql.IsolationLevel
}

// NewTxRunner constructs a runner using serializable isolation.
func NewTxRunner(db *sqlx.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db, isolation: sql.LevelSerializable}
}

// RunInTx begins a transaction, invokes fn, and commits. A commit already in
// flight completes server-side regardless of client disconnect; anything
// before commit rolls back as a unit.
func (r *SQLTxRunner) RunInTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: r.isolation})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		if IsConflict(err) {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if IsConflict(err) {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsConflict reports whether err is a serialization or deadlock failure.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pqSerializationFailure || code == pqDeadlockDetected
	}
	return false
}
