// Package domain defines the core domain models for the secret vault: encrypted secret records,
// share grants, audit entries and the events emitted when they change.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
)

// SystemActorID identifies operations issued by the vault itself (scheduled and master-key
// rotation) rather than by a user.
var SystemActorID = uuid.Nil

// RotationPolicy describes when a secret is due for automatic rotation.
type RotationPolicy struct {
	Enabled  bool
	Interval time.Duration
}

// Secret is a persisted, encrypted secret record.
//
// While Active, the embedded bundle fields are all present and non-empty. Version starts at 1
// and strictly increases on every rotation or content update. Revision increases on every stored
// change, descriptive or not, and guards compare-and-swap writes.
type Secret struct {
	ID             uuid.UUID
	OwnerUserID    uuid.UUID
	OrganizationID *uuid.UUID
	Type           SecretType
	Provider       string
	Name           string
	Description    string

	// Bundle holds ciphertext, wrapped DEK, salt, nonce and cipher parameters.
	cryptoDomain.Bundle

	Version        int
	Tags           []string
	Metadata       Metadata
	RotationPolicy *RotationPolicy
	ExpiresAt      *time.Time
	LastAccessedAt *time.Time
	AccessCount    int64
	Active         bool
	LastRotatedAt  *time.Time
	AttestationRef string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	Revision       int64
}

// IsExpired reports whether the secret's expiry has elapsed at now.
func (s *Secret) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// IsDeleted reports whether the secret was soft-deleted.
func (s *Secret) IsDeleted() bool {
	return !s.Active || s.DeletedAt != nil
}

// IsDueForRotation reports whether an enabled rotation policy interval has elapsed at now.
func (s *Secret) IsDueForRotation(now time.Time) bool {
	if s.RotationPolicy == nil || !s.RotationPolicy.Enabled || s.RotationPolicy.Interval <= 0 {
		return false
	}
	last := s.CreatedAt
	if s.LastRotatedAt != nil {
		last = *s.LastRotatedAt
	}
	return !now.Before(last.Add(s.RotationPolicy.Interval))
}

// SecretValue is a secret record together with its decrypted value.
//
// Plaintext must be zeroed by the caller once it has been written out.
type SecretValue struct {
	Secret    *Secret
	Plaintext []byte `json:"-"`
}

// ArchivedBundle is a rotated-out bundle kept for a bounded rollback window.
type ArchivedBundle struct {
	SecretID uuid.UUID
	Version  int
	cryptoDomain.Bundle
	ArchivedAt time.Time
	ExpiresAt  time.Time
}

// SecretFilter narrows List results to active secrets visible to one requester.
//
// A secret is visible when AccessibleTo owns it or its id is in SharedIDs.
type SecretFilter struct {
	AccessibleTo   uuid.UUID
	SharedIDs      []uuid.UUID
	OwnedOnly      bool
	OrganizationID *uuid.UUID
	Type           SecretType
	Provider       string
	// Tags matches secrets carrying every listed tag.
	Tags   []string
	Offset int
	Limit  int
}
