package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

const auditSigningInfo = "vault-audit-signing-v1"

// AuditSigner signs audit entries with HMAC-SHA256 under a key derived from a master key with
// HKDF-SHA256, keeping signing and encryption key usage separate.
type AuditSigner struct {
	keys cryptoDomain.MasterKeyProvider
}

// NewAuditSigner creates an AuditSigner backed by keys.
func NewAuditSigner(keys cryptoDomain.MasterKeyProvider) *AuditSigner {
	return &AuditSigner{keys: keys}
}

// Sign sets entry.Signature and entry.SignatureKeyID using the current master key.
func (a *AuditSigner) Sign(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	mk, err := a.keys.CurrentKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to get signing master key: %w", err)
	}

	sig, err := a.sign(mk.Key, entry)
	if err != nil {
		return err
	}
	entry.Signature = sig
	entry.SignatureKeyID = mk.ID
	return nil
}

// Verify checks entry.Signature with the master key recorded in entry.SignatureKeyID.
// Returns ErrSignatureInvalid if the entry was altered or the signature is missing.
func (a *AuditSigner) Verify(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	if len(entry.Signature) == 0 || entry.SignatureKeyID == "" {
		return vaultDomain.ErrSignatureInvalid
	}

	mk, err := a.keys.Key(ctx, entry.SignatureKeyID)
	if err != nil {
		return fmt.Errorf("failed to get signing master key: %w", err)
	}

	expected, err := a.sign(mk.Key, entry)
	if err != nil {
		return err
	}
	if !hmac.Equal(entry.Signature, expected) {
		return vaultDomain.ErrSignatureInvalid
	}
	return nil
}

func (a *AuditSigner) sign(masterKey []byte, entry *vaultDomain.AuditEntry) ([]byte, error) {
	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(auditSigningInfo)), signingKey); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	canonical, err := canonicalizeEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize audit entry: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// canonicalizeEntry encodes the signed fields of entry.
// Format: id ‖ secret_id ‖ sequence ‖ actor ‖ action ‖ success ‖ error_kind ‖ metadata ‖ created_at
// Variable-length fields are length-prefixed; created_at has microsecond precision to survive
// a database round trip.
func canonicalizeEntry(entry *vaultDomain.AuditEntry) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, entry.ID[:]...)
	if entry.SecretID != nil {
		buf = append(buf, 1)
		buf = append(buf, entry.SecretID[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.Sequence))
	buf = append(buf, entry.ActorUserID[:]...)
	buf = appendLengthPrefixed(buf, []byte(entry.Action))
	if entry.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendLengthPrefixed(buf, []byte(entry.ErrorKind))

	if len(entry.Metadata) > 0 {
		metadata, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadata)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.CreatedAt.UnixMicro()))
	return buf, nil
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
