// Package domain defines the cryptographic primitives shared by the vault: cipher suites,
// master keys, encrypted bundles and key-derivation parameters.
package domain

// Algorithm identifies the AEAD cipher suite used for both the secret value and the DEK wrap.
//
// Both suites use a 256-bit key, a 96-bit nonce and a 128-bit authentication tag, so a record
// encrypted with either can be stored in the same columns.
type Algorithm string

const (
	// AESGCM is AES-256-GCM, the default suite.
	AESGCM Algorithm = "aes-256-gcm"

	// ChaCha20 is ChaCha20-Poly1305, for hosts without AES hardware acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm returns the Algorithm for s or ErrUnsupportedAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

const (
	// KeySize is the size in bytes of master keys, KEKs and DEKs.
	KeySize = 32

	// NonceSize is the AEAD nonce size in bytes (96 bits) for both suites.
	NonceSize = 12

	// SaltSize is the size in bytes of the per-secret KDF salt (128 bits).
	SaltSize = 16

	// MinKDFIterations is the lowest PBKDF2 iteration count the vault accepts.
	MinKDFIterations = 100_000

	// DefaultKDFIterations is used when no iteration count is configured.
	DefaultKDFIterations = 210_000
)
