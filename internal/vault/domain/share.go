package domain

import (
	"time"

	"github.com/google/uuid"
)

// PermissionLevel is the access level carried by a share grant, ordered read < write < admin.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

func (p PermissionLevel) rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// IsValid reports whether p is a known level.
func (p PermissionLevel) IsValid() bool {
	return p.rank() > 0
}

// Satisfies reports whether p is at least required.
func (p PermissionLevel) Satisfies(required PermissionLevel) bool {
	return p.rank() > 0 && p.rank() >= required.rank()
}

// ShareGrant authorizes a user, or every member of an organization, to access a secret.
//
// Exactly one of GranteeUserID and GranteeOrgID is set.
type ShareGrant struct {
	ID              uuid.UUID
	SecretID        uuid.UUID
	GranteeUserID   *uuid.UUID
	GranteeOrgID    *uuid.UUID
	PermissionLevel PermissionLevel
	ExpiresAt       *time.Time
	Active          bool
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	RevokedAt       *time.Time
}

// IsEffective reports whether the grant is active and unexpired at now.
func (g *ShareGrant) IsEffective(now time.Time) bool {
	if !g.Active {
		return false
	}
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}

// Grantee identifies the subject of a share: a user or an organization.
type Grantee struct {
	UserID *uuid.UUID
	OrgID  *uuid.UUID
}

// UserGrantee returns a Grantee for a single user.
func UserGrantee(id uuid.UUID) Grantee {
	return Grantee{UserID: &id}
}

// OrgGrantee returns a Grantee for every member of an organization.
func OrgGrantee(id uuid.UUID) Grantee {
	return Grantee{OrgID: &id}
}

// Validate checks that exactly one grantee is set.
func (g Grantee) Validate() error {
	if (g.UserID == nil) == (g.OrgID == nil) {
		return ErrInvalidGrantee
	}
	return nil
}
