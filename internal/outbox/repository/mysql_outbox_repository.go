package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	"github.com/allisson/secretvault/internal/outbox/domain"
)

// MySQLOutboxEventRepository stores outbox events in MySQL. Ids are BINARY(16).
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a MySQLOutboxEventRepository.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{db: db}
}

// Create inserts a pending event.
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox_events (` + outboxColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, event.EventType, event.Payload, event.Status,
		event.Retries, event.LastError, event.NextAttemptAt, event.ProcessedAt, event.CreatedAt, event.CreatedAt)
	return apperrors.Storage(err, "failed to create outbox event")
}

// GetPendingEvents locks up to limit pending events due at now, oldest first. Rows locked by
// another worker are skipped.
func (r *MySQLOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = ? AND next_attempt_at <= ?
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.OutboxEventStatusPending, now, limit)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list pending outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var idBytes []byte
		if err := rows.Scan(&idBytes, &event.EventType, &event.Payload, &event.Status, &event.Retries,
			&event.LastError, &event.NextAttemptAt, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, apperrors.Storage(err, "failed to scan outbox event")
		}
		if err := event.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Storage(err, "failed to decode outbox event id")
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate outbox events")
	}

	return events, nil
}

// Update writes the delivery state of an event.
func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE outbox_events
			  SET status = ?, retries = ?, last_error = ?, next_attempt_at = ?, processed_at = ?,
			      updated_at = NOW(6)
			  WHERE id = ?`

	_, err = querier.ExecContext(ctx, query, event.Status, event.Retries, event.LastError,
		event.NextAttemptAt, event.ProcessedAt, idBytes)
	return apperrors.Storage(err, "failed to update outbox event")
}

// DeleteProcessedBefore removes events delivered before the cutoff.
func (r *MySQLOutboxEventRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed, before)
	if err != nil {
		return 0, apperrors.Storage(err, "failed to delete processed outbox events")
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err, "failed to count deleted outbox events")
	}
	return count, nil
}
