package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event names emitted after successful vault operations.
const (
	EventSecretCreated  = "secret.created"
	EventSecretAccessed = "secret.accessed"
	EventSecretUpdated  = "secret.updated"
	EventSecretRotated  = "secret.rotated"
	EventSecretDeleted  = "secret.deleted"
	EventSecretShared   = "secret.shared"
	EventShareRevoked   = "share.revoked"
)

// SecretEvent is the payload for secret lifecycle events. It never carries key material.
type SecretEvent struct {
	SecretID    uuid.UUID  `json:"secret_id"`
	OwnerUserID uuid.UUID  `json:"owner_user_id"`
	ActorUserID uuid.UUID  `json:"actor_user_id"`
	Version     int        `json:"version"`
	Type        SecretType `json:"secret_type,omitempty"`
	Trigger     string     `json:"trigger,omitempty"`
	Permanent   bool       `json:"permanent,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// ShareEvent is the payload for share events.
type ShareEvent struct {
	ShareID         uuid.UUID       `json:"share_id"`
	SecretID        uuid.UUID       `json:"secret_id"`
	ActorUserID     uuid.UUID       `json:"actor_user_id"`
	GranteeUserID   *uuid.UUID      `json:"grantee_user_id,omitempty"`
	GranteeOrgID    *uuid.UUID      `json:"grantee_org_id,omitempty"`
	PermissionLevel PermissionLevel `json:"permission_level,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
