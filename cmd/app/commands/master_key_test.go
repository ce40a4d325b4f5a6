package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
)

type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCreateMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	t.Run("kms", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}

		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.MatchedBy(func(key []byte) bool { return len(key) == 32 })).
			Return([]byte("encrypted"), nil)
		mockKeeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, mockService, logger, &out, "test-key", "localsecrets", "base64key://...")
		require.NoError(t, err)

		encoded := base64.StdEncoding.EncodeToString([]byte("encrypted"))
		require.Contains(t, out.String(), `MASTER_KEYS="test-key:`+encoded+`"`)
		require.Contains(t, out.String(), `ACTIVE_MASTER_KEY_ID="test-key"`)
		require.Contains(t, out.String(), `KMS_PROVIDER="localsecrets"`)

		mockService.AssertExpectations(t)
		mockKeeper.AssertExpectations(t)
	})

	t.Run("plaintext", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, nil, logger, &out, "", "", "")
		require.NoError(t, err)

		match := regexp.MustCompile(`MASTER_KEYS="(master-key-\d{4}-\d{2}-\d{2}):([^"]+)"`).
			FindStringSubmatch(out.String())
		require.Len(t, match, 3)
		key, err := base64.StdEncoding.DecodeString(match[2])
		require.NoError(t, err)
		require.Len(t, key, 32)
		require.NotContains(t, out.String(), "KMS_PROVIDER")
	})

	t.Run("partial-kms-parameters", func(t *testing.T) {
		err := RunCreateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "", "localsecrets", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "required together")
	})

	t.Run("scheme-mismatch", func(t *testing.T) {
		err := RunCreateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "test-key", "awskms", "base64key://...")
		require.Error(t, err)
		require.Contains(t, err.Error(), "awskms:// scheme")
	})

	t.Run("kms-error", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockService.On("OpenKeeper", ctx, "base64key://bad").Return(nil, errors.New("kms error"))

		err := RunCreateMasterKey(ctx, mockService, logger, &bytes.Buffer{}, "test-key", "localsecrets", "base64key://bad")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to open KMS keeper")
		mockService.AssertExpectations(t)
	})

	t.Run("encrypt-error", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}
		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.Anything).Return(nil, errors.New("boom"))
		mockKeeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, mockService, logger, &out, "test-key", "localsecrets", "base64key://...")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to encrypt master key with KMS")
		require.Empty(t, out.String())
		mockKeeper.AssertExpectations(t)
	})
}
