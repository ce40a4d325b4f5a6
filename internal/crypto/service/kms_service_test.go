package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"gocloud.dev/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	apperrors "github.com/allisson/secretvault/internal/errors"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("Success_LocalSecrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, keeper.Close())
		}()

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok, "keeper should be *secrets.Keeper")
	})

	t.Run("Error_InvalidURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})

	t.Run("Error_EmptyURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "")
		assert.Error(t, err)
		assert.Nil(t, keeper)
	})
}

func TestValidateKMSKeyURI(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		keyURI   string
		wantErr  error
	}{
		{name: "LocalSecrets", provider: "localsecrets", keyURI: "base64key://c2VjcmV0"},
		{name: "GCP", provider: "gcpkms", keyURI: "gcpkms://projects/p/locations/global/keyRings/r/cryptoKeys/k"},
		{name: "AWS", provider: "awskms", keyURI: "awskms://alias/vault?region=us-east-1"},
		{name: "Vault", provider: "hashivault", keyURI: "hashivault://vault-master"},
		{name: "SchemeMismatch", provider: "awskms", keyURI: "gcpkms://projects/p", wantErr: apperrors.ErrInvalidInput},
		{name: "UnknownProvider", provider: "ibmkms", keyURI: "ibmkms://key", wantErr: ErrUnsupportedKMSProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKMSKeyURI(tt.provider, tt.keyURI)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadMasterKeyChain_WithLocalSecrets(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()
	keyURI := generateLocalSecretsURI(t)

	keeper, err := kmsService.OpenKeeper(ctx, keyURI)
	require.NoError(t, err)
	masterKey := bytes.Repeat([]byte{0x42}, cryptoDomain.KeySize)
	wrapped, err := keeper.Encrypt(ctx, masterKey)
	require.NoError(t, err)
	require.NoError(t, keeper.Close())

	mkc, err := cryptoDomain.LoadMasterKeyChain(ctx, cryptoDomain.MasterKeyChainConfig{
		MasterKeys:        "kms-key:" + base64.StdEncoding.EncodeToString(wrapped),
		ActiveMasterKeyID: "kms-key",
		KMSKeyURI:         keyURI,
	}, kmsService, nil)
	require.NoError(t, err)
	defer mkc.Close()

	current, err := mkc.CurrentKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, masterKey, current.Key)
}
