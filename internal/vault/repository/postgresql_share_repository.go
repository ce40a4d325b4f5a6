package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// PostgreSQLShareRepository implements share grant persistence for PostgreSQL databases.
type PostgreSQLShareRepository struct {
	db *sql.DB
}

// NewPostgreSQLShareRepository creates a new PostgreSQL share repository instance.
func NewPostgreSQLShareRepository(db *sql.DB) *PostgreSQLShareRepository {
	return &PostgreSQLShareRepository{db: db}
}

// Create inserts a grant. A second active grant for the same grantee is rejected with ErrConflict.
func (p *PostgreSQLShareRepository) Create(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO share_grants (` + shareColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		grant.ID,
		grant.SecretID,
		nullableUUID(grant.GranteeUserID),
		nullableUUID(grant.GranteeOrgID),
		grant.PermissionLevel,
		grant.ExpiresAt,
		grant.Active,
		grant.CreatedBy,
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
func (p *PostgreSQLShareRepository) Update(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE share_grants
			  SET permission_level = $1, expires_at = $2, active = $3, updated_at = $4, revoked_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(
		ctx,
		query,
		grant.PermissionLevel,
		grant.ExpiresAt,
		grant.Active,
		grant.UpdatedAt,
		grant.RevokedAt,
		grant.ID,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to update share")
	}
	return requireAffected(result, vaultDomain.ErrShareNotFound)
}

// Get retrieves a grant by id.
func (p *PostgreSQLShareRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants WHERE id = $1`

	grant, err := scanShare(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrShareNotFound
		}
		return nil, apperrors.Storage(err, "failed to get share")
	}
	return grant, nil
}

// GetActiveForGrantee returns the active grant for grantee on secretID, expired or not.
func (p *PostgreSQLShareRepository) GetActiveForGrantee(
	ctx context.Context,
	secretID uuid.UUID,
	grantee vaultDomain.Grantee,
) (*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE secret_id = $1 AND active = TRUE AND grantee_user_id = $2`
	arg := nullableUUID(grantee.UserID)
	if grantee.OrgID != nil {
		query = `SELECT ` + shareColumns + ` FROM share_grants
				 WHERE secret_id = $1 AND active = TRUE AND grantee_org_id = $2`
		arg = *grantee.OrgID
	}

	grant, err := scanShare(querier.QueryRowContext(ctx, query, secretID, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrShareNotFound
		}
		return nil, apperrors.Storage(err, "failed to get share for grantee")
	}
	return grant, nil
}

// ListBySecret returns every grant on secretID, oldest first.
func (p *PostgreSQLShareRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE secret_id = $1
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, secretID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list shares")
	}
	return scanShares(rows)
}

// ListActiveForUser returns effective grants to userID or to any of orgIDs at now.
func (p *PostgreSQLShareRepository) ListActiveForUser(
	ctx context.Context,
	userID uuid.UUID,
	orgIDs []uuid.UUID,
	now time.Time,
) ([]*vaultDomain.ShareGrant, error) {
	querier := database.GetTx(ctx, p.db)

	orgs := make([]string, len(orgIDs))
	for i, id := range orgIDs {
		orgs[i] = id.String()
	}

	query := `SELECT ` + shareColumns + ` FROM share_grants
			  WHERE active = TRUE AND (expires_at IS NULL OR expires_at > $1)
			    AND (grantee_user_id = $2 OR grantee_org_id = ANY($3::uuid[]))
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, now, userID, pq.Array(orgs))
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list shares for user")
	}
	return scanShares(rows)
}
