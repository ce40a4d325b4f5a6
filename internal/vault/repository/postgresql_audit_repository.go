package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// PostgreSQLAuditRepository implements the append-only audit log for PostgreSQL databases.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository instance.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}

// NextSequence returns one past the highest sequence recorded for secretID.
func (p *PostgreSQLAuditRepository) NextSequence(ctx context.Context, secretID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COALESCE(MAX(sequence), 0) + 1 FROM audit_entries WHERE secret_id = $1`

	var next int64
	if err := querier.QueryRowContext(ctx, query, secretID).Scan(&next); err != nil {
		return 0, apperrors.Storage(err, "failed to read audit sequence")
	}
	return next, nil
}

// Append inserts entry. The (secret_id, sequence) unique index turns a concurrent writer
// taking the same sequence into ErrAuditSequenceConflict.
func (p *PostgreSQLAuditRepository) Append(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	querier := database.GetTx(ctx, p.db)

	metadata, err := encodeAuditMetadata(entry)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_entries (` + auditColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(
		ctx,
		query,
		entry.ID,
		nullableUUID(entry.SecretID),
		entry.Sequence,
		entry.ActorUserID,
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
func (p *PostgreSQLAuditRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + auditColumns + ` FROM audit_entries
			  WHERE secret_id = $1
			  ORDER BY sequence DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, secretID, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list audit entries")
	}
	return scanAuditEntries(rows)
}

// ListRange returns entries matching filter, oldest first.
func (p *PostgreSQLAuditRepository) ListRange(
	ctx context.Context,
	filter vaultDomain.AuditFilter,
) ([]*vaultDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	var (
		args       []any
		conditions []string
	)
	if filter.SecretID != nil {
		args = append(args, *filter.SecretID)
		conditions = append(conditions, fmt.Sprintf("secret_id = $%d", len(args)))
	}
	if filter.CreatedAt != nil {
		args = append(args, *filter.CreatedAt)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list audit entries")
	}
	return scanAuditEntries(rows)
}
