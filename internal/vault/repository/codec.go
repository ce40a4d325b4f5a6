// Package repository implements vault persistence for PostgreSQL and MySQL.
//
// Both dialects share the row layout defined here. UUIDs are native UUID columns on PostgreSQL
// and BINARY(16) on MySQL; tags and metadata are stored as JSON documents.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

const secretColumns = `id, owner_user_id, organization_id, secret_type, provider, name, description,
	ciphertext, wrapped_dek, salt, nonce, cipher_suite, master_key_id, kdf_iterations, version,
	tags, metadata, rotation_enabled, rotation_interval_seconds, expires_at, last_accessed_at,
	access_count, active, last_rotated_at, attestation_ref, created_at, updated_at, deleted_at,
	revision`

const shareColumns = `id, secret_id, grantee_user_id, grantee_org_id, permission_level, expires_at,
	active, created_by, created_at, updated_at, revoked_at`

const auditColumns = `id, secret_id, sequence, actor_user_id, action, success, error_kind, metadata,
	signature, signature_key_id, created_at`

const archiveColumns = `secret_id, version, ciphertext, wrapped_dek, salt, nonce, cipher_suite,
	master_key_id, kdf_iterations, archived_at, expires_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// uuidBytes returns the BINARY(16) form MySQL stores.
func uuidBytes(id uuid.UUID) []byte {
	return id[:]
}

func nullableUUIDBytes(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return uuidBytes(*id)
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rotationColumns flattens a rotation policy into its enabled flag and interval in seconds.
func rotationColumns(p *vaultDomain.RotationPolicy) (bool, sql.NullInt64) {
	if p == nil {
		return false, sql.NullInt64{}
	}
	return p.Enabled, sql.NullInt64{Int64: int64(p.Interval / time.Second), Valid: true}
}

func encodeJSON(v any, what string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to encode %s", what)
	}
	return data, nil
}

// secretArgs holds the encoded non-key columns of a secret.
type secretArgs struct {
	tags             []byte
	metadata         []byte
	rotationEnabled  bool
	rotationInterval sql.NullInt64
}

func encodeSecret(s *vaultDomain.Secret) (*secretArgs, error) {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags, "tags")
	if err != nil {
		return nil, err
	}
	metadata := s.Metadata
	if metadata == nil {
		metadata = vaultDomain.Metadata{}
	}
	metadataJSON, err := encodeJSON(metadata, "metadata")
	if err != nil {
		return nil, err
	}
	enabled, interval := rotationColumns(s.RotationPolicy)
	return &secretArgs{
		tags:             tagsJSON,
		metadata:         metadataJSON,
		rotationEnabled:  enabled,
		rotationInterval: interval,
	}, nil
}

func scanSecret(row rowScanner) (*vaultDomain.Secret, error) {
	var (
		s                vaultDomain.Secret
		orgID            uuid.NullUUID
		provider         sql.NullString
		description      sql.NullString
		attestationRef   sql.NullString
		tags             []byte
		metadata         []byte
		rotationEnabled  bool
		rotationInterval sql.NullInt64
	)

	err := row.Scan(
		&s.ID,
		&s.OwnerUserID,
		&orgID,
		&s.Type,
		&provider,
		&s.Name,
		&description,
		&s.Ciphertext,
		&s.WrappedDEK,
		&s.Salt,
		&s.Nonce,
		&s.CipherSuite,
		&s.MasterKeyID,
		&s.KDFIterations,
		&s.Version,
		&tags,
		&metadata,
		&rotationEnabled,
		&rotationInterval,
		&s.ExpiresAt,
		&s.LastAccessedAt,
		&s.AccessCount,
		&s.Active,
		&s.LastRotatedAt,
		&attestationRef,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.DeletedAt,
		&s.Revision,
	)
	if err != nil {
		return nil, err
	}

	s.OrganizationID = uuidPtr(orgID)
	s.Provider = provider.String
	s.Description = description.String
	s.AttestationRef = attestationRef.String
	if rotationInterval.Valid {
		s.RotationPolicy = &vaultDomain.RotationPolicy{
			Enabled:  rotationEnabled,
			Interval: time.Duration(rotationInterval.Int64) * time.Second,
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &s.Tags); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode tags")
		}
	}
	if len(s.Tags) == 0 {
		s.Tags = nil
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode metadata")
		}
	}
	if len(s.Metadata) == 0 {
		s.Metadata = nil
	}
	return &s, nil
}

func scanSecrets(rows *sql.Rows) ([]*vaultDomain.Secret, error) {
	defer rows.Close() //nolint:errcheck

	var secrets []*vaultDomain.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, apperrors.Storage(err, "failed to scan secret")
		}
		secrets = append(secrets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate secrets")
	}
	return secrets, nil
}

func scanShare(row rowScanner) (*vaultDomain.ShareGrant, error) {
	var (
		g           vaultDomain.ShareGrant
		granteeUser uuid.NullUUID
		granteeOrg  uuid.NullUUID
	)
	err := row.Scan(
		&g.ID,
		&g.SecretID,
		&granteeUser,
		&granteeOrg,
		&g.PermissionLevel,
		&g.ExpiresAt,
		&g.Active,
		&g.CreatedBy,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	g.GranteeUserID = uuidPtr(granteeUser)
	g.GranteeOrgID = uuidPtr(granteeOrg)
	return &g, nil
}

func scanShares(rows *sql.Rows) ([]*vaultDomain.ShareGrant, error) {
	defer rows.Close() //nolint:errcheck

	var grants []*vaultDomain.ShareGrant
	for rows.Next() {
		g, err := scanShare(rows)
		if err != nil {
			return nil, apperrors.Storage(err, "failed to scan share")
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate shares")
	}
	return grants, nil
}

func scanAuditEntry(row rowScanner) (*vaultDomain.AuditEntry, error) {
	var (
		e         vaultDomain.AuditEntry
		secretID  uuid.NullUUID
		errorKind sql.NullString
		metadata  []byte
	)
	err := row.Scan(
		&e.ID,
		&secretID,
		&e.Sequence,
		&e.ActorUserID,
		&e.Action,
		&e.Success,
		&errorKind,
		&metadata,
		&e.Signature,
		&e.SignatureKeyID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.SecretID = uuidPtr(secretID)
	e.ErrorKind = vaultDomain.ErrorKind(errorKind.String)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit metadata")
		}
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func scanAuditEntries(rows *sql.Rows) ([]*vaultDomain.AuditEntry, error) {
	defer rows.Close() //nolint:errcheck

	var entries []*vaultDomain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, apperrors.Storage(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate audit entries")
	}
	return entries, nil
}

func encodeAuditMetadata(e *vaultDomain.AuditEntry) ([]byte, error) {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return encodeJSON(metadata, "audit metadata")
}

// checkCAS inspects the result of a version-conditioned update. When no row matched, exists
// decides between ErrSecretNotFound and ErrVersionConflict.
func checkCAS(ctx context.Context, result sql.Result, exists func(ctx context.Context) error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}
	if err := exists(ctx); err != nil {
		return err
	}
	return vaultDomain.ErrVersionConflict
}

// requireAffected returns notFound when result touched no row.
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
