package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
)

// EnvelopeCipher encrypts secret values under a random DEK and wraps the DEK under a
// per-secret KEK.
//
//	ciphertext = AEAD(DEK, nonce, plaintext, aad = secret_id ‖ version)
//	wrapped_dek = nonce_w ‖ AEAD(KEK, nonce_w, DEK, aad = secret_id)
//
// Every decryption failure is reported as an integrity error and no partial plaintext is
// ever returned.
type EnvelopeCipher struct {
	deriver     *KeyDeriver
	aeadManager AEADManager
	suite       cryptoDomain.Algorithm
}

// NewEnvelopeCipher creates an EnvelopeCipher that seals new bundles with suite.
func NewEnvelopeCipher(
	deriver *KeyDeriver,
	aeadManager AEADManager,
	suite cryptoDomain.Algorithm,
) (*EnvelopeCipher, error) {
	if _, err := cryptoDomain.ParseAlgorithm(string(suite)); err != nil {
		return nil, err
	}
	return &EnvelopeCipher{deriver: deriver, aeadManager: aeadManager, suite: suite}, nil
}

// CurrentMasterKeyID returns the id of the master key new bundles are derived from.
func (e *EnvelopeCipher) CurrentMasterKeyID(ctx context.Context) (string, error) {
	return e.deriver.CurrentMasterKeyID(ctx)
}

// Encrypt seals plaintext for secretID at version, owned by ownerUserID, with a fresh salt,
// DEK and nonce.
func (e *EnvelopeCipher) Encrypt(
	ctx context.Context,
	plaintext []byte,
	secretID uuid.UUID,
	version int,
	ownerUserID uuid.UUID,
) (*cryptoDomain.Bundle, error) {
	masterKeyID, err := e.deriver.CurrentMasterKeyID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current master key: %w", err)
	}

	salt := make([]byte, cryptoDomain.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	kek, err := e.deriver.DeriveKEK(ctx, masterKeyID, ownerUserID, secretID, salt, e.deriver.Iterations())
	if err != nil {
		return nil, fmt.Errorf("failed to derive kek: %w", err)
	}
	defer cryptoDomain.Zero(kek)

	dek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate dek: %w", err)
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := e.aeadManager.CreateCipher(dek, e.suite)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := dataCipher.Encrypt(plaintext, valueAAD(secretID, version))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret value: %w", err)
	}

	kekCipher, err := e.aeadManager.CreateCipher(kek, e.suite)
	if err != nil {
		return nil, err
	}
	sealedDEK, wrapNonce, err := kekCipher.Encrypt(dek, secretID[:])
	if err != nil {
		return nil, fmt.Errorf("failed to wrap dek: %w", err)
	}

	return &cryptoDomain.Bundle{
		Ciphertext:    ciphertext,
		WrappedDEK:    append(wrapNonce, sealedDEK...),
		Salt:          salt,
		Nonce:         nonce,
		CipherSuite:   e.suite,
		MasterKeyID:   masterKeyID,
		KDFIterations: e.deriver.Iterations(),
	}, nil
}

// Decrypt opens bundle for secretID at version, owned by ownerUserID.
//
// Authentication failure of either the wrapped DEK or the ciphertext returns an error wrapping
// errors.ErrIntegrity. A master key that is no longer loaded returns an error wrapping
// ErrMasterKeyNotFound. The caller must Zero the returned plaintext.
func (e *EnvelopeCipher) Decrypt(
	ctx context.Context,
	bundle *cryptoDomain.Bundle,
	secretID uuid.UUID,
	version int,
	ownerUserID uuid.UUID,
) ([]byte, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	kek, err := e.deriver.DeriveKEK(ctx, bundle.MasterKeyID, ownerUserID, secretID, bundle.Salt, bundle.KDFIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to derive kek: %w", err)
	}
	defer cryptoDomain.Zero(kek)

	kekCipher, err := e.aeadManager.CreateCipher(kek, bundle.CipherSuite)
	if err != nil {
		return nil, err
	}

	if len(bundle.WrappedDEK) <= cryptoDomain.NonceSize {
		return nil, cryptoDomain.ErrKeyUnwrapFailed
	}
	wrapNonce := bundle.WrappedDEK[:cryptoDomain.NonceSize]
	sealedDEK := bundle.WrappedDEK[cryptoDomain.NonceSize:]

	dek, err := kekCipher.Decrypt(sealedDEK, wrapNonce, secretID[:])
	if err != nil {
		return nil, cryptoDomain.ErrKeyUnwrapFailed
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := e.aeadManager.CreateCipher(dek, bundle.CipherSuite)
	if err != nil {
		return nil, cryptoDomain.ErrKeyUnwrapFailed
	}
	plaintext, err := dataCipher.Decrypt(bundle.Ciphertext, bundle.Nonce, valueAAD(secretID, version))
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// valueAAD binds a ciphertext to its secret id and version.
func valueAAD(secretID uuid.UUID, version int) []byte {
	aad := make([]byte, 0, len(secretID)+8)
	aad = append(aad, secretID[:]...)
	return binary.BigEndian.AppendUint64(aad, uint64(version))
}
