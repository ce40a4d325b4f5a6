package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names the vault operation an audit entry records.
type AuditAction string

const (
	AuditActionCreate            AuditAction = "create"
	AuditActionRead              AuditAction = "read"
	AuditActionUpdate            AuditAction = "update"
	AuditActionRotate            AuditAction = "rotate"
	AuditActionShare             AuditAction = "share"
	AuditActionRevoke            AuditAction = "revoke"
	AuditActionDelete            AuditAction = "delete"
	AuditActionList              AuditAction = "list"
	AuditActionReadAudit         AuditAction = "read_audit"
	AuditActionTest              AuditAction = "test"
	AuditActionVerifyAttestation AuditAction = "verify_attestation"
)

// ErrorKind classifies a failed operation in its audit entry.
type ErrorKind string

const (
	ErrorKindValidation       ErrorKind = "validation"
	ErrorKindNotFound         ErrorKind = "not_found"
	ErrorKindPermissionDenied ErrorKind = "permission_denied"
	ErrorKindExpired          ErrorKind = "expired"
	ErrorKindIntegrity        ErrorKind = "integrity"
	ErrorKindStorage          ErrorKind = "storage"
	ErrorKindConflict         ErrorKind = "conflict"
	ErrorKindUnavailable      ErrorKind = "unavailable"
	ErrorKindInternal         ErrorKind = "internal"
)

// AuditEntry is an immutable record of one vault operation attempt.
//
// Sequence is monotonic per SecretID. Entries that address no single secret carry a nil
// SecretID and sequence 0. Signature is an HMAC over the entry's canonical form
// keyed from the master key identified by SignatureKeyID.
type AuditEntry struct {
	ID             uuid.UUID
	SecretID       *uuid.UUID
	Sequence       int64
	ActorUserID    uuid.UUID
	Action         AuditAction
	Success        bool
	ErrorKind      ErrorKind
	Metadata       map[string]any
	Signature      []byte
	SignatureKeyID string
	CreatedAt      time.Time
}

// AuditFilter narrows ListRange results.
type AuditFilter struct {
	SecretID  *uuid.UUID
	CreatedAt *time.Time
	Before    *time.Time
	Offset    int
	Limit     int
}
