package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

func newSecret() *vaultDomain.Secret {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orgID := uuid.Must(uuid.NewV7())
	return &vaultDomain.Secret{
		ID:             uuid.Must(uuid.NewV7()),
		OwnerUserID:    uuid.Must(uuid.NewV7()),
		OrganizationID: &orgID,
		Type:           vaultDomain.SecretTypeAPIKey,
		Provider:       "stripe",
		Name:           "billing",
		Bundle: cryptoDomain.Bundle{
			Ciphertext:    []byte("ciphertext"),
			WrappedDEK:    []byte("wrapped"),
			Salt:          []byte("salt"),
			Nonce:         []byte("nonce"),
			CipherSuite:   cryptoDomain.AESGCM,
			MasterKeyID:   "mk-1",
			KDFIterations: 210000,
		},
		Version:        3,
		RotationPolicy: &vaultDomain.RotationPolicy{Enabled: true, Interval: 48 * time.Hour},
		AttestationRef: "tx-1",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMapSecretToResponse(t *testing.T) {
	secret := newSecret()

	response := MapSecretToResponse(secret)

	assert.Equal(t, secret.ID.String(), response.ID)
	assert.Equal(t, secret.OwnerUserID.String(), response.OwnerUserID)
	require.NotNil(t, response.OrganizationID)
	assert.Equal(t, secret.OrganizationID.String(), *response.OrganizationID)
	assert.Equal(t, "api_key", response.Type)
	assert.Equal(t, 3, response.Version)
	assert.Equal(t, "aes-256-gcm", response.CipherSuite)
	assert.True(t, response.Attested)
	assert.Equal(t, int64(172800), response.RotationPolicy.IntervalSeconds)
	assert.Empty(t, response.Value)
	assert.NotNil(t, response.Tags)
	assert.NotNil(t, response.Metadata)

	body, err := json.Marshal(response)
	require.NoError(t, err)
	for _, field := range []string{"ciphertext", "wrapped_dek", "salt", "nonce", "master_key_id", "value"} {
		assert.NotContains(t, string(body), `"`+field+`"`)
	}
}

func TestMapSecretValueToResponse(t *testing.T) {
	value := &vaultDomain.SecretValue{Secret: newSecret(), Plaintext: []byte("sk_live_123")}

	response := MapSecretValueToResponse(value)

	body, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"value":"c2tfbGl2ZV8xMjM="`)
}

func TestMapSharesToListResponse(t *testing.T) {
	userID := uuid.Must(uuid.NewV7())
	grant := &vaultDomain.ShareGrant{
		ID:              uuid.Must(uuid.NewV7()),
		SecretID:        uuid.Must(uuid.NewV7()),
		GranteeUserID:   &userID,
		PermissionLevel: vaultDomain.PermissionWrite,
		Active:          true,
		CreatedBy:       uuid.Must(uuid.NewV7()),
	}

	response := MapSharesToListResponse([]*vaultDomain.ShareGrant{grant})

	require.Len(t, response.Data, 1)
	assert.Equal(t, userID.String(), *response.Data[0].GranteeUserID)
	assert.Nil(t, response.Data[0].GranteeOrgID)
	assert.Equal(t, "write", response.Data[0].PermissionLevel)

	assert.NotNil(t, MapSharesToListResponse(nil).Data)
}

func TestMapAuditEntriesToListResponse(t *testing.T) {
	secretID := uuid.Must(uuid.NewV7())
	entries := []*vaultDomain.AuditEntry{
		{
			ID:          uuid.Must(uuid.NewV7()),
			SecretID:    &secretID,
			Sequence:    4,
			ActorUserID: uuid.Must(uuid.NewV7()),
			Action:      vaultDomain.AuditActionRead,
			Success:     false,
			ErrorKind:   vaultDomain.ErrorKindPermissionDenied,
			Signature:   []byte{1, 2, 3},
		},
		{
			ID:     uuid.Must(uuid.NewV7()),
			Action: vaultDomain.AuditActionList,
		},
	}

	response := MapAuditEntriesToListResponse(entries)

	require.Len(t, response.Data, 2)
	assert.Equal(t, secretID.String(), *response.Data[0].SecretID)
	assert.Equal(t, "permission_denied", response.Data[0].ErrorKind)
	assert.True(t, response.Data[0].Signed)
	assert.Nil(t, response.Data[1].SecretID)
	assert.False(t, response.Data[1].Signed)
}
