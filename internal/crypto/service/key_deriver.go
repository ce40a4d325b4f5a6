package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
)

// KeyDeriver derives per-secret KEKs from a master key with PBKDF2-HMAC-SHA256.
//
//	password = len(master_key) ‖ master_key ‖ owner_user_id
//	salt     = len(salt) ‖ salt ‖ secret_id
//
// Lengths are 4-byte big-endian prefixes so that no two distinct inputs share an encoding.
// Binding the secret id into the salt input means a salt collision cannot reuse a KEK across
// secrets.
type KeyDeriver struct {
	keys       cryptoDomain.MasterKeyProvider
	iterations int
}

// NewKeyDeriver returns a KeyDeriver that uses iterations for new KEKs.
// It returns ErrKDFIterationsTooLow when iterations is below MinKDFIterations.
func NewKeyDeriver(keys cryptoDomain.MasterKeyProvider, iterations int) (*KeyDeriver, error) {
	if iterations < cryptoDomain.MinKDFIterations {
		return nil, fmt.Errorf(
			"%w: got %d, minimum is %d",
			cryptoDomain.ErrKDFIterationsTooLow,
			iterations,
			cryptoDomain.MinKDFIterations,
		)
	}
	return &KeyDeriver{keys: keys, iterations: iterations}, nil
}

// Iterations returns the iteration count used for new KEKs.
func (d *KeyDeriver) Iterations() int {
	return d.iterations
}

// CurrentMasterKeyID returns the id of the master key used for new KEKs.
func (d *KeyDeriver) CurrentMasterKeyID(ctx context.Context) (string, error) {
	mk, err := d.keys.CurrentKey(ctx)
	if err != nil {
		return "", err
	}
	return mk.ID, nil
}

// DeriveKEK derives the 32-byte KEK for one secret. The caller must Zero the result.
func (d *KeyDeriver) DeriveKEK(
	ctx context.Context,
	masterKeyID string,
	ownerUserID uuid.UUID,
	secretID uuid.UUID,
	salt []byte,
	iterations int,
) ([]byte, error) {
	if iterations < cryptoDomain.MinKDFIterations {
		return nil, cryptoDomain.ErrKDFIterationsTooLow
	}
	if len(salt) == 0 {
		return nil, cryptoDomain.ErrInvalidBundle
	}

	mk, err := d.keys.Key(ctx, masterKeyID)
	if err != nil {
		return nil, err
	}

	password := lengthPrefixed(mk.Key, ownerUserID[:])
	defer cryptoDomain.Zero(password)
	saltInput := lengthPrefixed(salt, secretID[:])

	return pbkdf2.Key(password, saltInput, iterations, cryptoDomain.KeySize, sha256.New), nil
}

// lengthPrefixed returns len(head) ‖ head ‖ tail.
func lengthPrefixed(head, tail []byte) []byte {
	buf := make([]byte, 4, 4+len(head)+len(tail))
	binary.BigEndian.PutUint32(buf, uint32(len(head)))
	buf = append(buf, head...)
	return append(buf, tail...)
}
