package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

var (
	secretColumnNames = []string{
		"id", "owner_user_id", "organization_id", "secret_type", "provider", "name", "description",
		"ciphertext", "wrapped_dek", "salt", "nonce", "cipher_suite", "master_key_id", "kdf_iterations",
		"version", "tags", "metadata", "rotation_enabled", "rotation_interval_seconds", "expires_at",
		"last_accessed_at", "access_count", "active", "last_rotated_at", "attestation_ref", "created_at",
		"updated_at", "deleted_at", "revision",
	}
	shareColumnNames = []string{
		"id", "secret_id", "grantee_user_id", "grantee_org_id", "permission_level", "expires_at",
		"active", "created_by", "created_at", "updated_at", "revoked_at",
	}
	auditColumnNames = []string{
		"id", "secret_id", "sequence", "actor_user_id", "action", "success", "error_kind", "metadata",
		"signature", "signature_key_id", "created_at",
	}
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testSecret() *vaultDomain.Secret {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &vaultDomain.Secret{
		ID:          uuid.Must(uuid.NewV7()),
		OwnerUserID: uuid.New(),
		Type:        vaultDomain.SecretTypeAPIKey,
		Provider:    "stripe",
		Name:        "payments",
		Bundle: cryptoDomain.Bundle{
			Ciphertext:    []byte("ciphertext"),
			WrappedDEK:    []byte("wrapped-dek"),
			Salt:          []byte("salt-salt-salt-1"),
			Nonce:         []byte("nonce-123456"),
			CipherSuite:   cryptoDomain.AESGCM,
			MasterKeyID:   "key1",
			KDFIterations: 210000,
		},
		Version:        1,
		Revision:       1,
		Tags:           []string{"prod"},
		Metadata:       vaultDomain.Metadata{"team": "billing", "tier": float64(2)},
		RotationPolicy: &vaultDomain.RotationPolicy{Enabled: true, Interval: 24 * time.Hour},
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// secretRow renders s the way a driver returns it. id renders UUID columns.
func secretRow(s *vaultDomain.Secret, id func(uuid.UUID) driver.Value) []driver.Value {
	return []driver.Value{
		id(s.ID), id(s.OwnerUserID), nil, string(s.Type), s.Provider, s.Name, nil,
		s.Ciphertext, s.WrappedDEK, s.Salt, s.Nonce, string(s.CipherSuite), s.MasterKeyID,
		int64(s.KDFIterations), int64(s.Version), []byte(`["prod"]`), []byte(`{"team":"billing","tier":2}`),
		true, int64(86400), nil, nil, int64(0), true, nil, nil, s.CreatedAt, s.UpdatedAt, nil,
		s.Revision,
	}
}

func pgID(id uuid.UUID) driver.Value { return id.String() }

func mysqlID(id uuid.UUID) driver.Value { return uuidBytes(id) }

func toDriverArgs(args []any) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
