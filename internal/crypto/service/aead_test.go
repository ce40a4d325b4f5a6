package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()
	validKey := randomKey(t)

	t.Run("create AES-GCM cipher", func(t *testing.T) {
		cipher, err := manager.CreateCipher(validKey, cryptoDomain.AESGCM)
		require.NoError(t, err)
		_, ok := cipher.(*AESGCMCipher)
		assert.True(t, ok)
	})

	t.Run("create ChaCha20-Poly1305 cipher", func(t *testing.T) {
		cipher, err := manager.CreateCipher(validKey, cryptoDomain.ChaCha20)
		require.NoError(t, err)
		_, ok := cipher.(*ChaCha20Poly1305Cipher)
		assert.True(t, ok)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(validKey, cryptoDomain.Algorithm("aes-gcm"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})

	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := manager.CreateCipher(make([]byte, size), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize, "size %d", size)
	}
}

func TestAEAD_EncryptDecrypt(t *testing.T) {
	manager := NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			cipher, err := manager.CreateCipher(randomKey(t), alg)
			require.NoError(t, err)

			plaintext := []byte("sk-live-1234567890")
			aad := []byte("secret-id")

			ciphertext, nonce, err := cipher.Encrypt(plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, nonce, 12)
			assert.Len(t, ciphertext, len(plaintext)+16)

			decrypted, err := cipher.Decrypt(ciphertext, nonce, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)

			t.Run("unique nonces", func(t *testing.T) {
				_, nonce2, err := cipher.Encrypt(plaintext, aad)
				require.NoError(t, err)
				assert.NotEqual(t, nonce, nonce2)
			})

			t.Run("wrong aad fails", func(t *testing.T) {
				_, err := cipher.Decrypt(ciphertext, nonce, []byte("other"))
				assert.Error(t, err)
			})

			t.Run("tampered ciphertext fails", func(t *testing.T) {
				tampered := append([]byte(nil), ciphertext...)
				tampered[0] ^= 0x01
				_, err := cipher.Decrypt(tampered, nonce, aad)
				assert.Error(t, err)
			})

			t.Run("short nonce fails", func(t *testing.T) {
				_, err := cipher.Decrypt(ciphertext, nonce[:4], aad)
				assert.Error(t, err)
			})

			t.Run("empty plaintext", func(t *testing.T) {
				ct, n, err := cipher.Encrypt([]byte{}, nil)
				require.NoError(t, err)
				pt, err := cipher.Decrypt(ct, n, nil)
				require.NoError(t, err)
				assert.Empty(t, pt)
			})
		})
	}
}
