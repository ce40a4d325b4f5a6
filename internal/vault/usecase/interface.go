// Package usecase implements the secret vault: access control, audit logging, rotation and
// the orchestration of the public vault operations over the envelope cipher and the stores.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// EnvelopeCipher seals and opens secret values. It is implemented by cryptoService.EnvelopeCipher.
type EnvelopeCipher interface {
	Encrypt(
		ctx context.Context,
		plaintext []byte,
		secretID uuid.UUID,
		version int,
		ownerUserID uuid.UUID,
	) (*cryptoDomain.Bundle, error)
	Decrypt(
		ctx context.Context,
		bundle *cryptoDomain.Bundle,
		secretID uuid.UUID,
		version int,
		ownerUserID uuid.UUID,
	) ([]byte, error)
	CurrentMasterKeyID(ctx context.Context) (string, error)
}

// SecretRepository persists secret records. It never sees plaintext.
//
// Methods taking expectedRevision perform a compare-and-swap on Secret.Revision, store
// expectedRevision+1 on success and return vaultDomain.ErrVersionConflict when the stored
// revision differs.
type SecretRepository interface {
	Create(ctx context.Context, secret *vaultDomain.Secret) error
	Get(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error)
	// UpdateMetadata writes the descriptive fields and updated_at.
	UpdateMetadata(ctx context.Context, secret *vaultDomain.Secret, expectedRevision int64) error
	// ReplaceBundle writes the bundle, version and descriptive fields as one unit.
	ReplaceBundle(ctx context.Context, secret *vaultDomain.Secret, expectedRevision int64) error
	// SetAttestationRef records the attestation receipt for version without a revision check.
	SetAttestationRef(ctx context.Context, id uuid.UUID, version int, ref string) error
	// TouchAccess increments access_count and sets last_accessed_at without a revision check.
	TouchAccess(ctx context.Context, id uuid.UUID, at time.Time) error
	// SoftDelete marks the secret inactive, wiping the bundle when wipe is true.
	SoftDelete(ctx context.Context, id uuid.UUID, expectedRevision int64, at time.Time, wipe bool) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter vaultDomain.SecretFilter) ([]*vaultDomain.Secret, error)
	ListDueForRotation(ctx context.Context, now time.Time, offset, limit int) ([]*vaultDomain.Secret, error)
	// ListNotUsingMasterKey lists active secrets whose KEK was derived from a different master key.
	ListNotUsingMasterKey(ctx context.Context, masterKeyID string, offset, limit int) ([]*vaultDomain.Secret, error)
	Archive(ctx context.Context, archived *vaultDomain.ArchivedBundle) error
	PurgeArchived(ctx context.Context, before time.Time) (int64, error)
}

// ShareRepository persists share grants.
type ShareRepository interface {
	Create(ctx context.Context, grant *vaultDomain.ShareGrant) error
	Update(ctx context.Context, grant *vaultDomain.ShareGrant) error
	Get(ctx context.Context, id uuid.UUID) (*vaultDomain.ShareGrant, error)
	// GetActiveForGrantee returns the active grant for grantee on secretID, expired or not.
	GetActiveForGrantee(
		ctx context.Context,
		secretID uuid.UUID,
		grantee vaultDomain.Grantee,
	) (*vaultDomain.ShareGrant, error)
	ListBySecret(ctx context.Context, secretID uuid.UUID) ([]*vaultDomain.ShareGrant, error)
	// ListActiveForUser returns active, unexpired grants to userID or to any of orgIDs.
	ListActiveForUser(
		ctx context.Context,
		userID uuid.UUID,
		orgIDs []uuid.UUID,
		now time.Time,
	) ([]*vaultDomain.ShareGrant, error)
}

// AuditRepository appends and reads audit entries. There is no update or delete.
type AuditRepository interface {
	// NextSequence returns the next sequence number for secretID.
	NextSequence(ctx context.Context, secretID uuid.UUID) (int64, error)
	// Append inserts entry, returning vaultDomain.ErrAuditSequenceConflict when its
	// (secret_id, sequence) pair is already taken.
	Append(ctx context.Context, entry *vaultDomain.AuditEntry) error
	ListBySecret(ctx context.Context, secretID uuid.UUID, offset, limit int) ([]*vaultDomain.AuditEntry, error)
	ListRange(ctx context.Context, filter vaultDomain.AuditFilter) ([]*vaultDomain.AuditEntry, error)
}

// OrgMembership answers organization membership questions for access control.
type OrgMembership interface {
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
	// ListOrganizations returns every organization userID belongs to.
	ListOrganizations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// EventPublisher hands events to an asynchronous bus. Publish must never block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// BlockchainAttestor records and checks content hashes on an external ledger.
type BlockchainAttestor interface {
	Attest(ctx context.Context, hash []byte) (string, error)
	Verify(ctx context.Context, ref string, hash []byte) (bool, error)
}

// ProviderValidator checks a secret value against its provider, for example by calling the
// provider's API with an API key.
type ProviderValidator interface {
	Validate(
		ctx context.Context,
		provider string,
		secretType vaultDomain.SecretType,
		value []byte,
	) (*CredentialTestResult, error)
}

// CredentialTestResult is the outcome of a ProviderValidator check.
type CredentialTestResult struct {
	Valid     bool      `json:"valid"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// DeleteOptions controls DeleteSecret.
type DeleteOptions struct {
	// Permanent purges the record instead of soft-deleting it.
	Permanent bool
	// Wipe zeroes the encrypted bundle of a soft-deleted record.
	Wipe bool
}

// RotationReport summarizes a batch rotation.
type RotationReport struct {
	Rotated int
	Failed  int
	Errors  map[uuid.UUID]error
}

// VaultUseCase is the public operation set of the vault.
type VaultUseCase interface {
	CreateSecret(ctx context.Context, owner uuid.UUID, in vaultDomain.DraftInput) (*vaultDomain.Secret, error)
	// GetSecret returns the record and, when decrypt is true, its plaintext.
	//
	// Security Note: callers MUST zero SecretValue.Plaintext after use.
	GetSecret(ctx context.Context, requester, id uuid.UUID, decrypt bool) (*vaultDomain.SecretValue, error)
	UpdateSecret(
		ctx context.Context,
		requester, id uuid.UUID,
		in vaultDomain.UpdateInput,
	) (*vaultDomain.Secret, error)
	DeleteSecret(ctx context.Context, requester, id uuid.UUID, opts DeleteOptions) error
	ShareSecret(
		ctx context.Context,
		owner, id uuid.UUID,
		grantee vaultDomain.Grantee,
		level vaultDomain.PermissionLevel,
		expiresAt *time.Time,
	) (*vaultDomain.ShareGrant, error)
	RevokeShare(ctx context.Context, owner, shareID uuid.UUID) error
	RotateSecret(ctx context.Context, requester, id uuid.UUID) (*vaultDomain.Secret, error)
	ListSecrets(
		ctx context.Context,
		requester uuid.UUID,
		filter vaultDomain.SecretFilter,
	) ([]*vaultDomain.Secret, error)
	GetAccessLogs(
		ctx context.Context,
		requester, id uuid.UUID,
		offset, limit int,
	) ([]*vaultDomain.AuditEntry, error)
	ListShares(ctx context.Context, owner, id uuid.UUID) ([]*vaultDomain.ShareGrant, error)
	TestCredential(ctx context.Context, requester, id uuid.UUID) (*CredentialTestResult, error)
	VerifyAttestation(ctx context.Context, requester, id uuid.UUID) (bool, error)
	RotateDueSecrets(ctx context.Context, now time.Time) (*RotationReport, error)
	RotateMasterKey(ctx context.Context) (*RotationReport, error)
	// PurgeArchivedBundles removes archived bundles whose retention ended before before.
	PurgeArchivedBundles(ctx context.Context, before time.Time) (int64, error)
	// VerifyAuditLogs checks the signatures of audit entries created in [start, end).
	VerifyAuditLogs(ctx context.Context, start, end time.Time) (*AuditVerificationReport, error)
}
