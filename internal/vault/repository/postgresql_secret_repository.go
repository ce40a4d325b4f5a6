package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// PostgreSQLSecretRepository implements secret persistence for PostgreSQL databases.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL secret repository instance.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}

// Create inserts a new secret record.
func (p *PostgreSQLSecretRepository) Create(ctx context.Context, secret *vaultDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `INSERT INTO secrets (` + secretColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			          $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`

	_, err = querier.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.OwnerUserID,
		nullableUUID(secret.OrganizationID),
		secret.Type,
		nullString(secret.Provider),
		secret.Name,
		nullString(secret.Description),
		secret.Ciphertext,
		secret.WrappedDEK,
		secret.Salt,
		secret.Nonce,
		secret.CipherSuite,
		secret.MasterKeyID,
		secret.KDFIterations,
		secret.Version,
		enc.tags,
		enc.metadata,
		enc.rotationEnabled,
		enc.rotationInterval,
		secret.ExpiresAt,
		secret.LastAccessedAt,
		secret.AccessCount,
		secret.Active,
		secret.LastRotatedAt,
		nullString(secret.AttestationRef),
		secret.CreatedAt,
		secret.UpdatedAt,
		secret.DeletedAt,
		secret.Revision,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "secret already exists")
		}
		return apperrors.Storage(err, "failed to create secret")
	}
	return nil
}

// Get retrieves a secret by id, including soft-deleted records.
func (p *PostgreSQLSecretRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = $1`

	secret, err := scanSecret(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrSecretNotFound
		}
		return nil, apperrors.Storage(err, "failed to get secret")
	}
	return secret, nil
}

// UpdateMetadata writes the descriptive fields when the stored revision is expectedRevision.
func (p *PostgreSQLSecretRepository) UpdateMetadata(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	querier := database.GetTx(ctx, p.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `UPDATE secrets
			  SET name = $1, description = $2, provider = $3, tags = $4, metadata = $5,
			      rotation_enabled = $6, rotation_interval_seconds = $7, expires_at = $8, updated_at = $9,
			      revision = revision + 1
			  WHERE id = $10 AND revision = $11 AND active = TRUE`

	result, err := querier.ExecContext(
		ctx,
		query,
		secret.Name,
		nullString(secret.Description),
		nullString(secret.Provider),
		enc.tags,
		enc.metadata,
		enc.rotationEnabled,
		enc.rotationInterval,
		secret.ExpiresAt,
		secret.UpdatedAt,
		secret.ID,
		expectedRevision,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to update secret metadata")
	}
	return p.checkCAS(ctx, result, secret.ID)
}

// ReplaceBundle writes a new bundle and version when the stored revision is expectedRevision.
func (p *PostgreSQLSecretRepository) ReplaceBundle(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	querier := database.GetTx(ctx, p.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `UPDATE secrets
			  SET name = $1, description = $2, provider = $3, tags = $4, metadata = $5,
			      rotation_enabled = $6, rotation_interval_seconds = $7, expires_at = $8, updated_at = $9,
			      ciphertext = $10, wrapped_dek = $11, salt = $12, nonce = $13, cipher_suite = $14,
			      master_key_id = $15, kdf_iterations = $16, version = $17, last_rotated_at = $18,
			      attestation_ref = $19, revision = revision + 1
			  WHERE id = $20 AND revision = $21 AND active = TRUE`

	result, err := querier.ExecContext(
		ctx,
		query,
		secret.Name,
		nullString(secret.Description),
		nullString(secret.Provider),
		enc.tags,
		enc.metadata,
		enc.rotationEnabled,
		enc.rotationInterval,
		secret.ExpiresAt,
		secret.UpdatedAt,
		secret.Ciphertext,
		secret.WrappedDEK,
		secret.Salt,
		secret.Nonce,
		secret.CipherSuite,
		secret.MasterKeyID,
		secret.KDFIterations,
		secret.Version,
		secret.LastRotatedAt,
		nullString(secret.AttestationRef),
		secret.ID,
		expectedRevision,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to replace secret bundle")
	}
	return p.checkCAS(ctx, result, secret.ID)
}

// SetAttestationRef stores the attestation receipt of version. A version that moved on is left
// untouched.
func (p *PostgreSQLSecretRepository) SetAttestationRef(
	ctx context.Context,
	id uuid.UUID,
	version int,
	ref string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET attestation_ref = $1 WHERE id = $2 AND version = $3 AND active = TRUE`

	if _, err := querier.ExecContext(ctx, query, nullString(ref), id, version); err != nil {
		return apperrors.Storage(err, "failed to store attestation reference")
	}
	return nil
}

// TouchAccess records a read without changing the version or revision.
func (p *PostgreSQLSecretRepository) TouchAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET access_count = access_count + 1, last_accessed_at = $1 WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, at, id)
	if err != nil {
		return apperrors.Storage(err, "failed to record secret access")
	}
	return requireAffected(result, vaultDomain.ErrSecretNotFound)
}

// SoftDelete marks the secret inactive, optionally wiping its bundle.
func (p *PostgreSQLSecretRepository) SoftDelete(
	ctx context.Context,
	id uuid.UUID,
	expectedRevision int64,
	at time.Time,
	wipe bool,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET active = FALSE, deleted_at = $1, updated_at = $1, revision = revision + 1
			  WHERE id = $2 AND revision = $3 AND active = TRUE`
	if wipe {
		query = `UPDATE secrets SET active = FALSE, deleted_at = $1, updated_at = $1, revision = revision + 1,
				     ciphertext = NULL, wrapped_dek = NULL, salt = NULL, nonce = NULL
				 WHERE id = $2 AND revision = $3 AND active = TRUE`
	}

	result, err := querier.ExecContext(ctx, query, at, id, expectedRevision)
	if err != nil {
		return apperrors.Storage(err, "failed to delete secret")
	}
	return p.checkCAS(ctx, result, id)
}

// HardDelete removes the secret together with its shares and archived bundles.
// Audit entries are kept.
func (p *PostgreSQLSecretRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	for _, query := range []string{
		`DELETE FROM share_grants WHERE secret_id = $1`,
		`DELETE FROM archived_bundles WHERE secret_id = $1`,
	} {
		if _, err := querier.ExecContext(ctx, query, id); err != nil {
			return apperrors.Storage(err, "failed to purge secret dependents")
		}
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return apperrors.Storage(err, "failed to purge secret")
	}
	return requireAffected(result, vaultDomain.ErrSecretNotFound)
}

// List returns active secrets visible under filter, newest first.
func (p *PostgreSQLSecretRepository) List(
	ctx context.Context,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	args := []any{filter.AccessibleTo}
	conditions := []string{"active = TRUE"}

	if !filter.OwnedOnly && len(filter.SharedIDs) > 0 {
		ids := make([]string, len(filter.SharedIDs))
		for i, id := range filter.SharedIDs {
			ids[i] = id.String()
		}
		args = append(args, pq.Array(ids))
		conditions = append(conditions, fmt.Sprintf("(owner_user_id = $1 OR id = ANY($%d::uuid[]))", len(args)))
	} else {
		conditions = append(conditions, "owner_user_id = $1")
	}
	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("secret_type = $%d", len(args)))
	}
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		conditions = append(conditions, fmt.Sprintf("provider = $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		tags, err := encodeJSON(filter.Tags, "tags")
		if err != nil {
			return nil, err
		}
		args = append(args, tags)
		conditions = append(conditions, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets")
	}
	return scanSecrets(rows)
}

// ListDueForRotation returns active secrets whose rotation interval elapsed at now.
func (p *PostgreSQLSecretRepository) ListDueForRotation(
	ctx context.Context,
	now time.Time,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE active = TRUE AND rotation_enabled = TRUE AND rotation_interval_seconds > 0
			    AND COALESCE(last_rotated_at, created_at) + make_interval(secs => rotation_interval_seconds) <= $1
			  ORDER BY id ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, now, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets due for rotation")
	}
	return scanSecrets(rows)
}

// ListNotUsingMasterKey returns active secrets encrypted under a master key other than masterKeyID.
func (p *PostgreSQLSecretRepository) ListNotUsingMasterKey(
	ctx context.Context,
	masterKeyID string,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE active = TRUE AND master_key_id <> $1
			  ORDER BY id ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, masterKeyID, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets by master key")
	}
	return scanSecrets(rows)
}

// Archive stores a rotated-out bundle.
func (p *PostgreSQLSecretRepository) Archive(ctx context.Context, archived *vaultDomain.ArchivedBundle) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO archived_bundles (` + archiveColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		archived.SecretID,
		archived.Version,
		archived.Ciphertext,
		archived.WrappedDEK,
		archived.Salt,
		archived.Nonce,
		archived.CipherSuite,
		archived.MasterKeyID,
		archived.KDFIterations,
		archived.ArchivedAt,
		archived.ExpiresAt,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to archive bundle")
	}
	return nil
}

// PurgeArchived deletes archived bundles whose retention ended before before.
func (p *PostgreSQLSecretRepository) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM archived_bundles WHERE expires_at < $1`, before)
	if err != nil {
		return 0, apperrors.Storage(err, "failed to purge archived bundles")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err, "failed to count purged archived bundles")
	}
	return n, nil
}

// checkCAS turns a zero-row conditional update into ErrSecretNotFound or ErrVersionConflict.
func (p *PostgreSQLSecretRepository) checkCAS(ctx context.Context, result sql.Result, id uuid.UUID) error {
	return checkCAS(ctx, result, func(ctx context.Context) error {
		var exists bool
		err := database.GetTx(ctx, p.db).
			QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM secrets WHERE id = $1)`, id).
			Scan(&exists)
		if err != nil {
			return apperrors.Storage(err, "failed to check secret existence")
		}
		if !exists {
			return vaultDomain.ErrSecretNotFound
		}
		return nil
	})
}
