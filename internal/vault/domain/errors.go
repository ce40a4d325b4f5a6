package domain

import (
	"github.com/allisson/secretvault/internal/errors"
)

// Vault error definitions.
var (
	// ErrSecretNotFound indicates the secret does not exist or was purged.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrShareNotFound indicates the share grant does not exist.
	ErrShareNotFound = errors.Wrap(errors.ErrNotFound, "share not found")

	// ErrSecretExpired indicates the secret's expires_at has passed.
	ErrSecretExpired = errors.Wrap(errors.ErrExpired, "secret expired")

	// ErrShareExpired indicates the requester's only qualifying grant is past its expires_at.
	ErrShareExpired = errors.Wrap(errors.ErrExpired, "share expired")

	// ErrSecretDeleted indicates the secret is soft-deleted and no longer readable.
	ErrSecretDeleted = errors.Wrap(errors.ErrNotFound, "secret deleted")

	// ErrPermissionDenied indicates the requester lacks the required permission level.
	ErrPermissionDenied = errors.Wrap(errors.ErrForbidden, "permission denied")

	// ErrVersionConflict indicates a compare-and-swap on version lost to a concurrent writer.
	ErrVersionConflict = errors.Wrap(errors.ErrConflict, "secret version conflict")

	// ErrAuditSequenceConflict indicates another entry took the same per-secret sequence.
	ErrAuditSequenceConflict = errors.Wrap(errors.ErrConflict, "audit sequence conflict")

	// ErrAuditFailed indicates the audit entry could not be written and the operation was aborted.
	ErrAuditFailed = errors.Wrap(errors.ErrStorage, "audit append failed")

	// ErrInvalidOwner indicates a secret without a user owner.
	ErrInvalidOwner = errors.Wrap(errors.ErrInvalidInput, "owner user id is required")

	// ErrInvalidSecretType indicates an unknown secret type.
	ErrInvalidSecretType = errors.Wrap(errors.ErrInvalidInput, "invalid secret type")

	// ErrInvalidMetadata indicates metadata that is nested, oversized or of an unsupported type.
	ErrInvalidMetadata = errors.Wrap(errors.ErrInvalidInput, "invalid metadata")

	// ErrInvalidSecretValue indicates a value that does not match its secret type.
	ErrInvalidSecretValue = errors.Wrap(errors.ErrInvalidInput, "invalid secret value")

	// ErrProviderRequired indicates a secret type that needs a provider was given none.
	ErrProviderRequired = errors.Wrap(errors.ErrInvalidInput, "provider is required for this secret type")

	// ErrInvalidGrantee indicates a share without exactly one of user or organization grantee.
	ErrInvalidGrantee = errors.Wrap(errors.ErrInvalidInput, "exactly one grantee must be set")

	// ErrInvalidPermissionLevel indicates an unknown permission level.
	ErrInvalidPermissionLevel = errors.Wrap(errors.ErrInvalidInput, "invalid permission level")

	// ErrCannotShareWithOwner indicates a share naming the owner as grantee.
	ErrCannotShareWithOwner = errors.Wrap(errors.ErrInvalidInput, "cannot share a secret with its owner")

	// ErrShareExpiryInPast indicates a share whose expires_at is not in the future.
	ErrShareExpiryInPast = errors.Wrap(errors.ErrInvalidInput, "share expiry must be in the future")

	// ErrHardDeleteRequiresAdmin indicates a permanent delete without admin access.
	ErrHardDeleteRequiresAdmin = errors.Wrap(errors.ErrForbidden, "permanent delete requires admin access")

	// ErrSystemTriggerNotAllowed indicates a user attempted a scheduled or master-key rotation.
	ErrSystemTriggerNotAllowed = errors.Wrap(errors.ErrForbidden, "rotation trigger reserved for the system")

	// ErrAttestorUnavailable indicates no blockchain attestor is configured or reachable.
	ErrAttestorUnavailable = errors.Wrap(errors.ErrUnavailable, "attestor unavailable")

	// ErrNotAttested indicates the secret carries no attestation reference.
	ErrNotAttested = errors.Wrap(errors.ErrNotFound, "secret has no attestation")

	// ErrValidatorUnavailable indicates no provider validator is configured or reachable.
	ErrValidatorUnavailable = errors.Wrap(errors.ErrUnavailable, "provider validator unavailable")

	// ErrSignatureInvalid indicates an audit entry signature does not match its content.
	ErrSignatureInvalid = errors.Wrap(errors.ErrIntegrity, "audit signature invalid")
)
