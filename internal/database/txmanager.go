// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

// txKey is a context key type for storing database transactions.
type txKey struct{}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager manages database transactions.
type TxManager interface {
	// WithTx runs fn inside a transaction, committing when fn returns nil and rolling back
	// otherwise. A call made with a context that already carries a transaction joins it.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RetryConfig controls how transient failures are retried.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig retries a transaction up to three times.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 20 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db    *sql.DB
	retry RetryConfig
}

// NewTxManager creates a new TxManager for the given database using DefaultRetryConfig.
func NewTxManager(db *sql.DB) TxManager {
	return NewTxManagerWithRetry(db, DefaultRetryConfig)
}

// NewTxManagerWithRetry creates a new TxManager with an explicit retry policy.
func NewTxManagerWithRetry(db *sql.DB, retry RetryConfig) TxManager {
	return &sqlTxManager{db: db, retry: retry}
}

// WithTx executes the function within a database transaction.
//
// Serialization failures, deadlocks and dropped connections roll the transaction back and run
// fn again with exponential backoff. fn must therefore be safe to re-run. Every other error
// is returned unchanged after rollback.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.retry.InitialInterval
	bo.MaxInterval = m.retry.MaxInterval

	operation := func() error {
		err := m.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, m.retry.MaxRetries), ctx))
	if err != nil && IsTransient(err) {
		return apperrors.Storage(err, "transaction failed after retries")
	}
	return err
}

func (m *sqlTxManager) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Storage(err, "failed to begin transaction")
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return apperrors.Join(err, apperrors.Storage(rbErr, "failed to rollback transaction"))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage(err, "failed to commit transaction")
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or db when there is none.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// IsTransient reports whether err is a database failure that may succeed when retried:
// serialization failures, deadlocks, lock wait timeouts and bad connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213:
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
