package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunRotateMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()
	existing := "old-key:b2xkLWtleQ=="

	t.Run("kms", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}
		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.AnythingOfType("[]uint8")).Return([]byte("new"), nil)
		mockKeeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunRotateMasterKey(
			ctx, mockService, logger, &out,
			"new-key", "localsecrets", "base64key://...", existing, "old-key",
		)
		require.NoError(t, err)
		require.Contains(t, out.String(), `MASTER_KEYS="old-key:b2xkLWtleQ==,new-key:bmV3"`)
		require.Contains(t, out.String(), `ACTIVE_MASTER_KEY_ID="new-key"`)
		require.Contains(t, out.String(), "app rewrap-secrets")
		mockService.AssertExpectations(t)
		mockKeeper.AssertExpectations(t)
	})

	t.Run("plaintext", func(t *testing.T) {
		var out bytes.Buffer
		err := RunRotateMasterKey(ctx, nil, logger, &out, "new-key", "", "", existing, "old-key")
		require.NoError(t, err)
		require.Contains(t, out.String(), `MASTER_KEYS="old-key:b2xkLWtleQ==,new-key:`)
	})

	t.Run("missing-existing-keys", func(t *testing.T) {
		err := RunRotateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "new-key", "", "", "", "old-key")
		require.Error(t, err)
		require.Contains(t, err.Error(), "MASTER_KEYS is not set")
	})

	t.Run("missing-active-key", func(t *testing.T) {
		err := RunRotateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "new-key", "", "", existing, "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "ACTIVE_MASTER_KEY_ID is not set")
	})

	t.Run("duplicate-key-id", func(t *testing.T) {
		err := RunRotateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "old-key", "", "", existing, "old-key")
		require.Error(t, err)
		require.Contains(t, err.Error(), "already exists")
	})
}
