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

// MySQLSecretRepository implements secret persistence for MySQL databases.
//
// Compare-and-swap updates rely on matched-row counts, so the DSN must set clientFoundRows=true.
type MySQLSecretRepository struct {
	db *sql.DB
}

// NewMySQLSecretRepository creates a new MySQL secret repository instance.
func NewMySQLSecretRepository(db *sql.DB) *MySQLSecretRepository {
	return &MySQLSecretRepository{db: db}
}

// Create inserts a new secret record.
func (m *MySQLSecretRepository) Create(ctx context.Context, secret *vaultDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `INSERT INTO secrets (` + secretColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		uuidBytes(secret.ID),
		uuidBytes(secret.OwnerUserID),
		nullableUUIDBytes(secret.OrganizationID),
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
func (m *MySQLSecretRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = ?`

	secret, err := scanSecret(querier.QueryRowContext(ctx, query, uuidBytes(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrSecretNotFound
		}
		return nil, apperrors.Storage(err, "failed to get secret")
	}
	return secret, nil
}

// UpdateMetadata writes the descriptive fields when the stored revision is expectedRevision.
func (m *MySQLSecretRepository) UpdateMetadata(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	querier := database.GetTx(ctx, m.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `UPDATE secrets
			  SET name = ?, description = ?, provider = ?, tags = ?, metadata = ?,
			      rotation_enabled = ?, rotation_interval_seconds = ?, expires_at = ?, updated_at = ?,
			      revision = revision + 1
			  WHERE id = ? AND revision = ? AND active = TRUE`

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
		uuidBytes(secret.ID),
		expectedRevision,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to update secret metadata")
	}
	return m.checkCAS(ctx, result, secret.ID)
}

// ReplaceBundle writes a new bundle and version when the stored revision is expectedRevision.
func (m *MySQLSecretRepository) ReplaceBundle(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	querier := database.GetTx(ctx, m.db)

	enc, err := encodeSecret(secret)
	if err != nil {
		return err
	}

	query := `UPDATE secrets
			  SET name = ?, description = ?, provider = ?, tags = ?, metadata = ?,
			      rotation_enabled = ?, rotation_interval_seconds = ?, expires_at = ?, updated_at = ?,
			      ciphertext = ?, wrapped_dek = ?, salt = ?, nonce = ?, cipher_suite = ?,
			      master_key_id = ?, kdf_iterations = ?, version = ?, last_rotated_at = ?,
			      attestation_ref = ?, revision = revision + 1
			  WHERE id = ? AND revision = ? AND active = TRUE`

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
		uuidBytes(secret.ID),
		expectedRevision,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to replace secret bundle")
	}
	return m.checkCAS(ctx, result, secret.ID)
}

// SetAttestationRef stores the attestation receipt of version. A version that moved on is left
// untouched.
func (m *MySQLSecretRepository) SetAttestationRef(
	ctx context.Context,
	id uuid.UUID,
	version int,
	ref string,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secrets SET attestation_ref = ? WHERE id = ? AND version = ? AND active = TRUE`

	if _, err := querier.ExecContext(ctx, query, nullString(ref), uuidBytes(id), version); err != nil {
		return apperrors.Storage(err, "failed to store attestation reference")
	}
	return nil
}

// TouchAccess records a read without changing the version or revision.
func (m *MySQLSecretRepository) TouchAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secrets SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, at, uuidBytes(id))
	if err != nil {
		return apperrors.Storage(err, "failed to record secret access")
	}
	return requireAffected(result, vaultDomain.ErrSecretNotFound)
}

// SoftDelete marks the secret inactive, optionally wiping its bundle.
func (m *MySQLSecretRepository) SoftDelete(
	ctx context.Context,
	id uuid.UUID,
	expectedRevision int64,
	at time.Time,
	wipe bool,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secrets SET active = FALSE, deleted_at = ?, updated_at = ?, revision = revision + 1
			  WHERE id = ? AND revision = ? AND active = TRUE`
	if wipe {
		query = `UPDATE secrets SET active = FALSE, deleted_at = ?, updated_at = ?, revision = revision + 1,
				     ciphertext = NULL, wrapped_dek = NULL, salt = NULL, nonce = NULL
				 WHERE id = ? AND revision = ? AND active = TRUE`
	}

	result, err := querier.ExecContext(ctx, query, at, at, uuidBytes(id), expectedRevision)
	if err != nil {
		return apperrors.Storage(err, "failed to delete secret")
	}
	return m.checkCAS(ctx, result, id)
}

// HardDelete removes the secret together with its shares and archived bundles.
// Audit entries are kept.
func (m *MySQLSecretRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	for _, query := range []string{
		`DELETE FROM share_grants WHERE secret_id = ?`,
		`DELETE FROM archived_bundles WHERE secret_id = ?`,
	} {
		if _, err := querier.ExecContext(ctx, query, uuidBytes(id)); err != nil {
			return apperrors.Storage(err, "failed to purge secret dependents")
		}
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, uuidBytes(id))
	if err != nil {
		return apperrors.Storage(err, "failed to purge secret")
	}
	return requireAffected(result, vaultDomain.ErrSecretNotFound)
}

// List returns active secrets visible under filter, newest first.
func (m *MySQLSecretRepository) List(
	ctx context.Context,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	args := []any{uuidBytes(filter.AccessibleTo)}
	conditions := []string{"active = TRUE"}

	if !filter.OwnedOnly && len(filter.SharedIDs) > 0 {
		placeholders := make([]string, len(filter.SharedIDs))
		for i, id := range filter.SharedIDs {
			placeholders[i] = "?"
			args = append(args, uuidBytes(id))
		}
		conditions = append(conditions, "(owner_user_id = ? OR id IN ("+strings.Join(placeholders, ", ")+"))")
	} else {
		conditions = append(conditions, "owner_user_id = ?")
	}
	if filter.OrganizationID != nil {
		args = append(args, uuidBytes(*filter.OrganizationID))
		conditions = append(conditions, "organization_id = ?")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "secret_type = ?")
	}
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		conditions = append(conditions, "provider = ?")
	}
	if len(filter.Tags) > 0 {
		tags, err := encodeJSON(filter.Tags, "tags")
		if err != nil {
			return nil, err
		}
		args = append(args, tags)
		conditions = append(conditions, "JSON_CONTAINS(tags, ?)")
	}

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += " LIMIT ? OFFSET ?"
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets")
	}
	return scanSecrets(rows)
}

// ListDueForRotation returns active secrets whose rotation interval elapsed at now.
func (m *MySQLSecretRepository) ListDueForRotation(
	ctx context.Context,
	now time.Time,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE active = TRUE AND rotation_enabled = TRUE AND rotation_interval_seconds > 0
			    AND DATE_ADD(COALESCE(last_rotated_at, created_at), INTERVAL rotation_interval_seconds SECOND) <= ?
			  ORDER BY id ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, now, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets due for rotation")
	}
	return scanSecrets(rows)
}

// ListNotUsingMasterKey returns active secrets encrypted under a master key other than masterKeyID.
func (m *MySQLSecretRepository) ListNotUsingMasterKey(
	ctx context.Context,
	masterKeyID string,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE active = TRUE AND master_key_id <> ?
			  ORDER BY id ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, masterKeyID, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list secrets by master key")
	}
	return scanSecrets(rows)
}

// Archive stores a rotated-out bundle.
func (m *MySQLSecretRepository) Archive(ctx context.Context, archived *vaultDomain.ArchivedBundle) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO archived_bundles (` + archiveColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		uuidBytes(archived.SecretID),
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
func (m *MySQLSecretRepository) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM archived_bundles WHERE expires_at < ?`, before)
	if err != nil {
		return 0, apperrors.Storage(err, "failed to purge archived bundles")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err, "failed to count purged archived bundles")
	}
	return n, nil
}

func (m *MySQLSecretRepository) checkCAS(ctx context.Context, result sql.Result, id uuid.UUID) error {
	return checkCAS(ctx, result, func(ctx context.Context) error {
		var exists bool
		err := database.GetTx(ctx, m.db).
			QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM secrets WHERE id = ?)`, uuidBytes(id)).
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
