package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func newMockTxManager(t *testing.T) (TxManager, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTxManagerWithRetry(db, fastRetry), db, mock
}

func TestWithTx_Success(t *testing.T) {
	txManager, db, mock := newMockTxManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		querier := GetTx(ctx, db)
		assert.IsType(t, &sql.Tx{}, querier)
		_, err := querier.ExecContext(ctx, "INSERT INTO t VALUES (1)")
		return err
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	txManager, _, mock := newMockTxManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		calls++
		return assert.AnError
	})

	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RetriesTransientErrors(t *testing.T) {
	txManager, _, mock := newMockTxManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_GivesUpAfterMaxRetries(t *testing.T) {
	txManager, _, mock := newMockTxManager(t)
	for range 3 {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		calls++
		return &mysql.MySQLError{Number: 1213}
	})

	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Equal(t, 3, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitError(t *testing.T) {
	txManager, _, mock := newMockTxManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Contains(t, err.Error(), "failed to commit transaction")
}

func TestWithTx_BeginError(t *testing.T) {
	txManager, _, mock := newMockTxManager(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestWithTx_JoinsExistingTransaction(t *testing.T) {
	txManager, db, mock := newMockTxManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := txManager.WithTx(context.Background(), func(outer context.Context) error {
		outerTx := GetTx(outer, db)
		return txManager.WithTx(outer, func(inner context.Context) error {
			assert.Same(t, outerTx, GetTx(inner, db))
			return nil
		})
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTx_WithoutTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	querier := GetTx(context.Background(), db)
	assert.Equal(t, db, querier)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "postgres serialization failure", err: &pq.Error{Code: "40001"}, want: true},
		{name: "postgres deadlock", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{name: "mysql lock wait timeout", err: &mysql.MySQLError{Number: 1205}, want: true},
		{name: "bad connection", err: driver.ErrBadConn, want: true},
		{name: "wrapped", err: apperrors.Storage(&pq.Error{Code: "40001"}, "x"), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
