package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// MySQLShareRepository implements share grant persistence for MySQL databases.
type MySQLShareRepository struct {
	db *sql.DB
}

// NewMySQLShareRepository creates a new MySQL share repository instance.
func NewMySQLShareRepository(db *sql.DB) *MySQLShareRepository {
	return &MySQLShareRepository{db: db}
}

// Create inserts a grant. A second active grant for the same grantee is rejected with ErrConflict.
func (m *MySQLShareRepository) Create(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO share_grants (` + shareColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		uuidBytes(grant.ID),
		uuidBytes(grant.SecretID),
		nullableUUIDBytes(grant.GranteeUserID),
		nullableUUIDBytes(grant.GranteeOrgID),
		grant.PermissionLevel,
		grant.ExpiresAt,
		grant.Active,
		uuidBytes(grant.CreatedBy),
		grant.CreatedAt,
		grant.UpdatedAt,
		grant.RevokedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "active share for grantee already exists")
		}
		return apperrors.Storage(err, "failed to create share")
	}
	return nil
}

// Update writes the mutable fields of a grant.
func (m *MySQLShareRepository) Update(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE share_grants
			  SET permission_level = ?, expires_at = ?, active = ?, updated_at = ?, revoked_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		grant.PermissionLevel,
		grant.ExpiresAt,
		grant.Active,
		grant.UpdatedAt,
		grant.RevokedAt,
		uuidBytes(grant.ID),
	)
	if err != nil {
		return apperrors.Storage(err, "failed to update share")
	}
	return requireAffected(result, vaultDomain.ErrShareNotFound)
}

// Get retrieves a grant by id.
func (m *MySQLShareRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants WHERE id = ?`

	grant, err := scanShare(querier.QueryRowContext(ctx, query, uuidBytes(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrShareNotFound
		}
		return nil, apperrors.Storage(err, "failed to get share")
	}
	return grant, nil
}

// GetActiveForGrantee returns the active grant for grantee on secretID, expired or not.
func (m *MySQLShareRepository) GetActiveForGrantee(
	ctx context.Context,
	secretID uuid.UUID,
	grantee vaultDomain.Grantee,
) (*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE secret_id = ? AND active = TRUE AND grantee_user_id = ?`
	arg := nullableUUIDBytes(grantee.UserID)
	if grantee.OrgID != nil {
		query = `SELECT ` + shareColumns + ` FROM share_grants
				 WHERE secret_id = ? AND active = TRUE AND grantee_org_id = ?`
		arg = uuidBytes(*grantee.OrgID)
	}

	grant, err := scanShare(querier.QueryRowContext(ctx, query, uuidBytes(secretID), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrShareNotFound
		}
		return nil, apperrors.Storage(err, "failed to get share for grantee")
	}
	return grant, nil
}

// ListBySecret returns every grant on secretID, oldest first.
func (m *MySQLShareRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE secret_id = ?
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, uuidBytes(secretID))
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list shares")
	}
	return scanShares(rows)
}

// ListActiveForUser returns effective grants to userID or to any of orgIDs at now.
func (m *MySQLShareRepository) ListActiveForUser(
	ctx context.Context,
	userID uuid.UUID,
	orgIDs []uuid.UUID,
	now time.Time,
) ([]*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, m.db)

	args := []any{now, uuidBytes(userID)}
	grantee := "grantee_user_id = ?"
	if len(orgIDs) > 0 {
		placeholders := make([]string, len(orgIDs))
		for i, id := range orgIDs {
			placeholders[i] = "?"
			args = append(args, uuidBytes(id))
		}
		grantee = "(grantee_user_id = ? OR grantee_org_id IN (" + strings.Join(placeholders, ", ") + "))"
	}

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE active = TRUE AND (expires_at IS NULL OR expires_at > ?) AND ` + grantee + `
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list shares for user")
	}
	return scanShares(rows)
}
