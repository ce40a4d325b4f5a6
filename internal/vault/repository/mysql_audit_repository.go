package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// MySQLAuditRepository implements the append-only audit log for MySQL databases.
type MySQLAuditRepository struct {
	db *sql.DB
}

// NewMySQLAuditRepository creates a new MySQL audit repository instance.
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

// NextSequence returns one past the highest sequence recorded for secretID.
func (m *MySQLAuditRepository) NextSequence(ctx context.Context, secretID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COALESCE(MAX(sequence), 0) + 1 FROM audit_entries WHERE secret_id = ?`

	var next int64
	if err := querier.QueryRowContext(ctx, query, uuidBytes(secretID)).Scan(&next); err != nil {
		return 0, apperrors.Storage(err, "failed to read audit sequence")
	}
	return next, nil
}

// Append inserts entry. The (secret_id, sequence) unique index turns a concurrent writer
// taking the same sequence into ErrAuditSequenceConflict.
func (m *MySQLAuditRepository) Append(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	querier := database.GetTx(ctx, m.db)

	metadata, err := encodeAuditMetadata(entry)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_entries (` + auditColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		uuidBytes(entry.ID),
		nullableUUIDBytes(entry.SecretID),
		entry.Sequence,
		uuidBytes(entry.ActorUserID),
		entry.Action,
		entry.Success,
		nullString(string(entry.ErrorKind)),
		metadata,
		entry.Signature,
		entry.SignatureKeyID,
		entry.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return vaultDomain.ErrAuditSequenceConflict
		}
		return apperrors.Storage(err, "failed to append audit entry")
	}
	return nil
}

// ListBySecret returns the entries of secretID, highest sequence first.
func (m *MySQLAuditRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + auditColumns + ` FROM audit_entries
			  WHERE secret_id = ?
			  ORDER BY sequence DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, uuidBytes(secretID), limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list audit entries")
	}
	return scanAuditEntries(rows)
}

// ListRange returns entries matching filter, oldest first.
func (m *MySQLAuditRepository) ListRange(
	ctx context.Context,
	filter vaultDomain.AuditFilter,
) ([]*vaultDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, m.db)

	var (
		args       []any
		conditions []string
	)
	if filter.SecretID != nil {
		args = append(args, uuidBytes(*filter.SecretID))
		conditions = append(conditions, "secret_id = ?")
	}
	if filter.CreatedAt != nil {
		args = append(args, *filter.CreatedAt)
		conditions = append(conditions, "created_at >= ?")
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		conditions = append(conditions, "created_at < ?")
	}

	query := `SELECT ` + auditColumns + ` FROM audit_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += " LIMIT ? OFFSET ?"
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list audit entries")
	}
	return scanAuditEntries(rows)
}
