package domain

import (
	"crypto/sha256"
	"encoding/binary"
)

// Bundle is the envelope-encrypted form of a secret value.
//
// The four byte fields are replaced together as one unit; a reader must never combine a
// ciphertext with a wrapped DEK from a different encryption. WrappedDEK is the wrap nonce
// followed by the AEAD output of the DEK under the KEK.
type Bundle struct {
	Ciphertext    []byte
	WrappedDEK    []byte
	Salt          []byte
	Nonce         []byte
	CipherSuite   Algorithm
	MasterKeyID   string
	KDFIterations int
}

// Validate checks that every component needed for decryption is present.
func (b *Bundle) Validate() error {
	if len(b.Ciphertext) == 0 || len(b.WrappedDEK) == 0 || len(b.Salt) == 0 || len(b.Nonce) == 0 {
		return ErrInvalidBundle
	}
	if b.MasterKeyID == "" || b.KDFIterations <= 0 {
		return ErrInvalidBundle
	}
	return nil
}

// Wipe zeroes and releases the byte fields, as done when a secret is soft-deleted with wiping.
func (b *Bundle) Wipe() {
	Zero(b.Ciphertext)
	Zero(b.WrappedDEK)
	Zero(b.Salt)
	Zero(b.Nonce)
	b.Ciphertext = nil
	b.WrappedDEK = nil
	b.Salt = nil
	b.Nonce = nil
}

// Digest returns a SHA-256 over the length-prefixed byte fields and cipher parameters. It is
// the content hash submitted for external attestation and reveals nothing about the plaintext.
func (b *Bundle) Digest() []byte {
	h := sha256.New()
	for _, field := range [][]byte{
		b.Ciphertext,
		b.WrappedDEK,
		b.Salt,
		b.Nonce,
		[]byte(b.CipherSuite),
		[]byte(b.MasterKeyID),
	} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		h.Write(n[:])
		h.Write(field)
	}
	var it [8]byte
	binary.BigEndian.PutUint64(it[:], uint64(b.KDFIterations))
	h.Write(it[:])
	return h.Sum(nil)
}
