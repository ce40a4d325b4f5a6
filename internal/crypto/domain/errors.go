package domain

import (
	"github.com/allisson/secretvault/internal/errors"
)

// Cryptographic error definitions.
//
// Failures that indicate tampered or corrupted data wrap errors.ErrIntegrity so operators can
// alarm on them; configuration problems wrap errors.ErrInvalidInput.
var (
	// ErrUnsupportedAlgorithm indicates the requested cipher suite is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrKDFIterationsTooLow indicates the configured PBKDF2 iteration count is below MinKDFIterations.
	ErrKDFIterationsTooLow = errors.Wrap(errors.ErrInvalidInput, "kdf iterations below minimum")

	// ErrKeyUnwrapFailed indicates the wrapped DEK failed authentication under the derived KEK.
	//
	// Causes include a tampered wrapped_dek, a tampered salt, a different owner, or a different
	// master key. The specific cause is not disclosed.
	ErrKeyUnwrapFailed = errors.Wrap(errors.ErrIntegrity, "key unwrap failed")

	// ErrDecryptionFailed indicates the secret ciphertext failed authentication under its DEK.
	ErrDecryptionFailed = errors.Wrap(errors.ErrIntegrity, "decryption failed")

	// ErrInvalidBundle indicates a stored bundle is missing one of its components.
	ErrInvalidBundle = errors.Wrap(errors.ErrIntegrity, "incomplete encrypted bundle")

	// ErrMasterKeysNotSet indicates MASTER_KEYS is empty.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "MASTER_KEYS not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is empty.
	ErrActiveMasterKeyIDNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_MASTER_KEY_ID not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not "id:base64".
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key is not valid standard base64.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid master key base64")

	// ErrDuplicateMasterKeyID indicates MASTER_KEYS lists the same id twice.
	ErrDuplicateMasterKeyID = errors.Wrap(errors.ErrInvalidInput, "duplicate master key id")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID is not one of MASTER_KEYS.
	ErrActiveMasterKeyNotFound = errors.Wrap(errors.ErrInvalidInput, "active master key not found")

	// ErrMasterKeyNotFound indicates a record references a master key that is no longer loaded.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "master key not found")
)
