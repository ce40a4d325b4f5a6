package domain

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyBytes(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestNewMasterKeyChain(t *testing.T) {
	t.Run("Success_CopiesKeyMaterial", func(t *testing.T) {
		raw := testKeyBytes(1)
		mkc, err := NewMasterKeyChain("key1", &MasterKey{ID: "key1", Key: raw})
		require.NoError(t, err)

		Zero(raw)
		k, ok := mkc.Get("key1")
		require.True(t, ok)
		assert.Equal(t, testKeyBytes(1), k.Key)
		assert.Equal(t, "key1", mkc.ActiveMasterKeyID())
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		_, err := NewMasterKeyChain("key1", &MasterKey{ID: "key1", Key: []byte("short")})
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	})

	t.Run("Error_DuplicateID", func(t *testing.T) {
		_, err := NewMasterKeyChain("key1",
			&MasterKey{ID: "key1", Key: testKeyBytes(1)},
			&MasterKey{ID: "key1", Key: testKeyBytes(2)},
		)
		assert.ErrorIs(t, err, ErrDuplicateMasterKeyID)
	})

	t.Run("Error_ActiveNotFound", func(t *testing.T) {
		_, err := NewMasterKeyChain("missing", &MasterKey{ID: "key1", Key: testKeyBytes(1)})
		assert.ErrorIs(t, err, ErrActiveMasterKeyNotFound)
	})

	t.Run("Error_NoKeys", func(t *testing.T) {
		_, err := NewMasterKeyChain("key1")
		assert.ErrorIs(t, err, ErrMasterKeysNotSet)
	})
}

func TestMasterKeyChain_Provider(t *testing.T) {
	mkc, err := NewMasterKeyChain("key2",
		&MasterKey{ID: "key1", Key: testKeyBytes(1)},
		&MasterKey{ID: "key2", Key: testKeyBytes(2)},
	)
	require.NoError(t, err)

	var provider MasterKeyProvider = mkc

	current, err := provider.CurrentKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key2", current.ID)

	old, err := provider.Key(context.Background(), "key1")
	require.NoError(t, err)
	assert.Equal(t, testKeyBytes(1), old.Key)

	_, err = provider.Key(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrMasterKeyNotFound)

	assert.Equal(t, []string{"key1", "key2"}, mkc.IDs())
}

func TestMasterKeyChain_Close(t *testing.T) {
	mkc, err := NewMasterKeyChain("key1", &MasterKey{ID: "key1", Key: testKeyBytes(7)})
	require.NoError(t, err)

	k, _ := mkc.Get("key1")
	held := k.Key

	mkc.Close()

	assert.Equal(t, "", mkc.ActiveMasterKeyID())
	assert.Equal(t, make([]byte, KeySize), held)
	_, found := mkc.Get("key1")
	assert.False(t, found)
}

func TestMasterKey_Redaction(t *testing.T) {
	key := &MasterKey{ID: "prod-key", Key: []byte("super-secret-master-key-material")}

	assert.NotContains(t, key.String(), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%v", key), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%#v", key), "super-secret")
	assert.Contains(t, key.String(), "prod-key")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("loaded", slog.Any("master_key", key))

	assert.NotContains(t, buf.String(), "super-secret")
	assert.NotContains(t, buf.String(), base64.StdEncoding.EncodeToString(key.Key))
	assert.Contains(t, buf.String(), redacted)
}

func TestLoadMasterKeyChainFromEnv(t *testing.T) {
	key1 := base64.StdEncoding.EncodeToString(make([]byte, 32))
	key2 := base64.StdEncoding.EncodeToString([]byte("12345678901234567890123456789012"))

	tests := []struct {
		name        string
		masterKeys  string
		activeKeyID string
		wantErr     error
		wantIDs     []string
	}{
		{
			name:        "single key",
			masterKeys:  "key1:" + key1,
			activeKeyID: "key1",
			wantIDs:     []string{"key1"},
		},
		{
			name:        "multiple keys with spaces",
			masterKeys:  "key1:" + key1 + " , key2:" + key2,
			activeKeyID: "key2",
			wantIDs:     []string{"key1", "key2"},
		},
		{
			name:        "missing master keys",
			masterKeys:  "",
			activeKeyID: "key1",
			wantErr:     ErrMasterKeysNotSet,
		},
		{
			name:        "missing active id",
			masterKeys:  "key1:" + key1,
			activeKeyID: "",
			wantErr:     ErrActiveMasterKeyIDNotSet,
		},
		{
			name:        "invalid format",
			masterKeys:  "key1" + key1,
			activeKeyID: "key1",
			wantErr:     ErrInvalidMasterKeysFormat,
		},
		{
			name:        "invalid base64",
			masterKeys:  "key1:not-base64!!",
			activeKeyID: "key1",
			wantErr:     ErrInvalidMasterKeyBase64,
		},
		{
			name:        "wrong key size",
			masterKeys:  "key1:" + base64.StdEncoding.EncodeToString([]byte("short")),
			activeKeyID: "key1",
			wantErr:     ErrInvalidKeySize,
		},
		{
			name:        "active key not in list",
			masterKeys:  "key1:" + key1,
			activeKeyID: "key9",
			wantErr:     ErrActiveMasterKeyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MASTER_KEYS", tt.masterKeys)
			t.Setenv("ACTIVE_MASTER_KEY_ID", tt.activeKeyID)

			mkc, err := LoadMasterKeyChainFromEnv()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, mkc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, mkc.IDs())
			assert.Equal(t, tt.activeKeyID, mkc.ActiveMasterKeyID())
		})
	}
}

type fakeKeeper struct {
	decryptErr error
	closed     bool
}

func (f *fakeKeeper) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ 0xAA
	}
	return out, nil
}

func (f *fakeKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return f.Encrypt(ctx, ciphertext)
}

func (f *fakeKeeper) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	keeper  *fakeKeeper
	openErr error
}

func (f *fakeOpener) OpenKeeper(_ context.Context, _ string) (KMSKeeper, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.keeper, nil
}

func TestLoadMasterKeyChain_KMS(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DecryptsEntries", func(t *testing.T) {
		keeper := &fakeKeeper{}
		wrapped, err := keeper.Encrypt(ctx, testKeyBytes(3))
		require.NoError(t, err)

		mkc, err := LoadMasterKeyChain(ctx, MasterKeyChainConfig{
			MasterKeys:        "kms1:" + base64.StdEncoding.EncodeToString(wrapped),
			ActiveMasterKeyID: "kms1",
			KMSKeyURI:         "base64key://test",
		}, &fakeOpener{keeper: keeper}, slog.New(slog.DiscardHandler))
		require.NoError(t, err)

		k, err := mkc.CurrentKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, testKeyBytes(3), k.Key)
		assert.True(t, keeper.closed)
	})

	t.Run("Error_DecryptFails", func(t *testing.T) {
		keeper := &fakeKeeper{decryptErr: errors.New("kms denied")}
		_, err := LoadMasterKeyChain(ctx, MasterKeyChainConfig{
			MasterKeys:        "kms1:" + base64.StdEncoding.EncodeToString(testKeyBytes(3)),
			ActiveMasterKeyID: "kms1",
			KMSKeyURI:         "base64key://test",
		}, &fakeOpener{keeper: keeper}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kms denied")
		assert.True(t, keeper.closed)
	})

	t.Run("Error_OpenFails", func(t *testing.T) {
		_, err := LoadMasterKeyChain(ctx, MasterKeyChainConfig{
			MasterKeys:        "kms1:" + base64.StdEncoding.EncodeToString(testKeyBytes(3)),
			ActiveMasterKeyID: "kms1",
			KMSKeyURI:         "base64key://test",
		}, &fakeOpener{openErr: errors.New("bad uri")}, nil)
		assert.EqualError(t, err, "bad uri")
	})
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("aes-256-gcm")
	require.NoError(t, err)
	assert.Equal(t, AESGCM, alg)

	alg, err = ParseAlgorithm("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, ChaCha20, alg)

	_, err = ParseAlgorithm("des")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
