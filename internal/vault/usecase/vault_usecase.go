package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// vaultUseCase implements VaultUseCase.
//
// Every public method appends exactly one audit entry through the operation runner before it
// returns. Cryptographic work runs outside transactions so no lock is held across key
// derivation.
type vaultUseCase struct {
	secrets   SecretRepository
	shares    ShareRepository
	audit     *AuditRecorder
	access    *AccessControl
	envelope  EnvelopeCipher
	rotation  *RotationManager
	orgs      OrgMembership
	attestor  BlockchainAttestor
	validator ProviderValidator
	attest    *attestation
	events    *eventEmitter
	runner    *operationRunner
	logger    *slog.Logger
	now       func() time.Time
}

// CreateSecret validates in, encrypts its value as version 1 and persists the record.
//
// in.Value is zeroed once it has been encrypted.
func (v *vaultUseCase) CreateSecret(
	ctx context.Context,
	owner uuid.UUID,
	in vaultDomain.DraftInput,
) (*vaultDomain.Secret, error) {
	defer cryptoDomain.Zero(in.Value)

	id := uuid.Must(uuid.NewV7())
	entry := v.runner.newEntry(ctx, owner, vaultDomain.AuditActionCreate, &id)

	secret, err := v.createSecret(ctx, owner, id, in, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}

	v.events.emit(ctx, vaultDomain.EventSecretCreated, vaultDomain.SecretEvent{
		SecretID:    secret.ID,
		OwnerUserID: secret.OwnerUserID,
		ActorUserID: owner,
		Version:     secret.Version,
		Type:        secret.Type,
		OccurredAt:  secret.CreatedAt,
	})
	return secret, nil
}

func (v *vaultUseCase) createSecret(
	ctx context.Context,
	owner, id uuid.UUID,
	in vaultDomain.DraftInput,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.Secret, error) {
	if owner == vaultDomain.SystemActorID {
		return nil, vaultDomain.ErrInvalidOwner
	}

	draft, err := vaultDomain.NewSecretDraft(in)
	if err != nil {
		return nil, err
	}
	entry.Metadata["secret_type"] = string(draft.Type)

	if draft.OrganizationID != nil {
		member, err := v.orgs.IsMember(ctx, *draft.OrganizationID, owner)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, vaultDomain.ErrPermissionDenied
		}
	}

	bundle, err := v.envelope.Encrypt(ctx, draft.Value, id, 1, owner)
	if err != nil {
		return nil, err
	}

	now := v.now().UTC()
	secret := &vaultDomain.Secret{
		ID:             id,
		OwnerUserID:    owner,
		OrganizationID: draft.OrganizationID,
		Type:           draft.Type,
		Provider:       draft.Provider,
		Name:           draft.Name,
		Description:    draft.Description,
		Bundle:         *bundle,
		Version:        1,
		Revision:       1,
		Tags:           draft.Tags,
		Metadata:       draft.Metadata,
		RotationPolicy: draft.RotationPolicy,
		ExpiresAt:      draft.ExpiresAt,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	entry.Metadata["version"] = secret.Version

	if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		return v.secrets.Create(txCtx, secret)
	}); err != nil {
		return nil, err
	}
	v.attest.record(ctx, secret)
	return secret, nil
}

// GetSecret returns the secret after checking read access and expiry, and its plaintext when
// decrypt is true. The access counter is bumped in the same transaction as the audit entry.
func (v *vaultUseCase) GetSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	decrypt bool,
) (*vaultDomain.SecretValue, error) {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionRead, &id)
	entry.Metadata["decrypt"] = decrypt

	value, err := v.getSecret(ctx, requester, id, decrypt, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}

	v.events.emit(ctx, vaultDomain.EventSecretAccessed, vaultDomain.SecretEvent{
		SecretID:    value.Secret.ID,
		OwnerUserID: value.Secret.OwnerUserID,
		ActorUserID: requester,
		Version:     value.Secret.Version,
		Type:        value.Secret.Type,
		OccurredAt:  *value.Secret.LastAccessedAt,
	})
	return value, nil
}

func (v *vaultUseCase) getSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	decrypt bool,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.SecretValue, error) {
	secret, err := v.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckAccess(ctx, secret, requester, vaultDomain.PermissionRead); err != nil {
		return nil, err
	}
	if secret.IsExpired(v.now()) {
		return nil, vaultDomain.ErrSecretExpired
	}
	entry.Metadata["version"] = secret.Version

	var plaintext []byte
	if decrypt {
		plaintext, err = v.envelope.Decrypt(ctx, &secret.Bundle, secret.ID, secret.Version, secret.OwnerUserID)
		if err != nil {
			return nil, err
		}
	}

	now := v.now().UTC()
	if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		return v.secrets.TouchAccess(txCtx, id, now)
	}); err != nil {
		cryptoDomain.Zero(plaintext)
		return nil, err
	}

	secret.AccessCount++
	secret.LastAccessedAt = &now
	return &vaultDomain.SecretValue{Secret: secret, Plaintext: plaintext}, nil
}

// UpdateSecret applies in to the secret after checking write access.
//
// A metadata-only update keeps the version. A new value is encrypted at version+1 and replaces
// the bundle atomically. Losing the version compare-and-swap returns ErrVersionConflict.
func (v *vaultUseCase) UpdateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	in vaultDomain.UpdateInput,
) (*vaultDomain.Secret, error) {
	defer cryptoDomain.Zero(in.Value)

	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionUpdate, &id)

	secret, err := v.updateSecret(ctx, requester, id, in, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}

	v.events.emit(ctx, vaultDomain.EventSecretUpdated, vaultDomain.SecretEvent{
		SecretID:    secret.ID,
		OwnerUserID: secret.OwnerUserID,
		ActorUserID: requester,
		Version:     secret.Version,
		Type:        secret.Type,
		OccurredAt:  secret.UpdatedAt,
	})
	return secret, nil
}

func (v *vaultUseCase) updateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	in vaultDomain.UpdateInput,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.Secret, error) {
	update, err := vaultDomain.NewSecretUpdate(in)
	if err != nil {
		return nil, err
	}

	current, err := v.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckAccess(ctx, current, requester, vaultDomain.PermissionWrite); err != nil {
		return nil, err
	}

	updated := *current
	if err := update.ApplyTo(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = v.now().UTC()
	updated.Revision = current.Revision + 1
	entry.Metadata["value_changed"] = update.HasValue()

	if !update.HasValue() {
		entry.Metadata["version"] = current.Version
		if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
			return v.secrets.UpdateMetadata(txCtx, &updated, current.Revision)
		}); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	updated.Version = current.Version + 1
	bundle, err := v.envelope.Encrypt(ctx, update.Value, updated.ID, updated.Version, updated.OwnerUserID)
	if err != nil {
		return nil, err
	}
	updated.Bundle = *bundle
	updated.AttestationRef = ""
	entry.Metadata["from_version"] = current.Version
	entry.Metadata["to_version"] = updated.Version

	if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		return v.secrets.ReplaceBundle(txCtx, &updated, current.Revision)
	}); err != nil {
		return nil, err
	}
	v.attest.record(ctx, &updated)
	return &updated, nil
}

// DeleteSecret soft-deletes the secret, or purges it when opts.Permanent is set. Both require
// admin access.
func (v *vaultUseCase) DeleteSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	opts DeleteOptions,
) error {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionDelete, &id)
	entry.Metadata["permanent"] = opts.Permanent
	entry.Metadata["wipe"] = opts.Wipe

	secret, err := v.deleteSecret(ctx, requester, id, opts, entry)
	if err != nil {
		return v.runner.finish(ctx, entry, err)
	}

	v.events.emit(ctx, vaultDomain.EventSecretDeleted, vaultDomain.SecretEvent{
		SecretID:    secret.ID,
		OwnerUserID: secret.OwnerUserID,
		ActorUserID: requester,
		Version:     secret.Version,
		Type:        secret.Type,
		Permanent:   opts.Permanent,
		OccurredAt:  v.now().UTC(),
	})
	return nil
}

func (v *vaultUseCase) deleteSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	opts DeleteOptions,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.Secret, error) {
	secret, err := v.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// A soft-deleted secret can still be purged, but not deleted again.
	if secret.IsDeleted() && !opts.Permanent {
		return nil, vaultDomain.ErrSecretDeleted
	}

	if err := v.access.CheckAccess(ctx, secret, requester, vaultDomain.PermissionAdmin); err != nil {
		if opts.Permanent && apperrors.Is(err, apperrors.ErrForbidden) {
			return nil, vaultDomain.ErrHardDeleteRequiresAdmin
		}
		return nil, err
	}
	entry.Metadata["version"] = secret.Version

	now := v.now().UTC()
	if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		if opts.Permanent {
			return v.secrets.HardDelete(txCtx, id)
		}
		return v.secrets.SoftDelete(txCtx, id, secret.Revision, now, opts.Wipe)
	}); err != nil {
		return nil, err
	}
	return secret, nil
}

// ShareSecret grants grantee level on the secret, replacing the level and expiry of an existing
// active grant to the same grantee. Only the owner may share.
func (v *vaultUseCase) ShareSecret(
	ctx context.Context,
	owner, id uuid.UUID,
	grantee vaultDomain.Grantee,
	level vaultDomain.PermissionLevel,
	expiresAt *time.Time,
) (*vaultDomain.ShareGrant, error) {
	entry := v.runner.newEntry(ctx, owner, vaultDomain.AuditActionShare, &id)
	entry.Metadata["permission_level"] = string(level)
	if grantee.UserID != nil {
		entry.Metadata["grantee_user_id"] = grantee.UserID.String()
	}
	if grantee.OrgID != nil {
		entry.Metadata["grantee_org_id"] = grantee.OrgID.String()
	}

	grant, err := v.shareSecret(ctx, owner, id, grantee, level, expiresAt, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}

	v.events.emit(ctx, vaultDomain.EventSecretShared, vaultDomain.ShareEvent{
		ShareID:         grant.ID,
		SecretID:        grant.SecretID,
		ActorUserID:     owner,
		GranteeUserID:   grant.GranteeUserID,
		GranteeOrgID:    grant.GranteeOrgID,
		PermissionLevel: grant.PermissionLevel,
		OccurredAt:      grant.UpdatedAt,
	})
	return grant, nil
}

func (v *vaultUseCase) shareSecret(
	ctx context.Context,
	owner, id uuid.UUID,
	grantee vaultDomain.Grantee,
	level vaultDomain.PermissionLevel,
	expiresAt *time.Time,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.ShareGrant, error) {
	if err := grantee.Validate(); err != nil {
		return nil, err
	}
	if !level.IsValid() {
		return nil, vaultDomain.ErrInvalidPermissionLevel
	}
	now := v.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, vaultDomain.ErrShareExpiryInPast
	}

	secret, err := v.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckOwner(secret, owner); err != nil {
		return nil, err
	}
	if grantee.UserID != nil && *grantee.UserID == secret.OwnerUserID {
		return nil, vaultDomain.ErrCannotShareWithOwner
	}

	var grant *vaultDomain.ShareGrant
	err = v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		existing, err := v.shares.GetActiveForGrantee(txCtx, id, grantee)
		if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		if existing != nil {
			existing.PermissionLevel = level
			existing.ExpiresAt = expiresAt
			existing.UpdatedAt = now
			grant = existing
			entry.Metadata["share_id"] = grant.ID.String()
			return v.shares.Update(txCtx, grant)
		}

		grant = &vaultDomain.ShareGrant{
			ID:              uuid.Must(uuid.NewV7()),
			SecretID:        id,
			GranteeUserID:   grantee.UserID,
			GranteeOrgID:    grantee.OrgID,
			PermissionLevel: level,
			ExpiresAt:       expiresAt,
			Active:          true,
			CreatedBy:       owner,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		entry.Metadata["share_id"] = grant.ID.String()
		return v.shares.Create(txCtx, grant)
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// RevokeShare deactivates a grant. Revoking an inactive grant succeeds without change.
func (v *vaultUseCase) RevokeShare(ctx context.Context, owner, shareID uuid.UUID) error {
	entry := v.runner.newEntry(ctx, owner, vaultDomain.AuditActionRevoke, nil)
	entry.Metadata["share_id"] = shareID.String()

	grant, changed, err := v.revokeShare(ctx, owner, shareID, entry)
	if err != nil {
		return v.runner.finish(ctx, entry, err)
	}

	if changed {
		v.events.emit(ctx, vaultDomain.EventShareRevoked, vaultDomain.ShareEvent{
			ShareID:       grant.ID,
			SecretID:      grant.SecretID,
			ActorUserID:   owner,
			GranteeUserID: grant.GranteeUserID,
			GranteeOrgID:  grant.GranteeOrgID,
			OccurredAt:    *grant.RevokedAt,
		})
	}
	return nil
}

func (v *vaultUseCase) revokeShare(
	ctx context.Context,
	owner, shareID uuid.UUID,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.ShareGrant, bool, error) {
	grant, err := v.shares.Get(ctx, shareID)
	if err != nil {
		return nil, false, err
	}
	secretID := grant.SecretID
	entry.SecretID = &secretID

	secret, err := v.secrets.Get(ctx, grant.SecretID)
	if err != nil {
		return nil, false, err
	}
	if err := v.access.CheckOwner(secret, owner); err != nil {
		return nil, false, err
	}

	if !grant.Active {
		entry.Metadata["already_revoked"] = true
		return grant, false, v.runner.recordWithoutMutation(ctx, entry)
	}

	now := v.now().UTC()
	grant.Active = false
	grant.RevokedAt = &now
	grant.UpdatedAt = now
	if err := v.runner.commit(ctx, entry, func(txCtx context.Context) error {
		return v.shares.Update(txCtx, grant)
	}); err != nil {
		return nil, false, err
	}
	return grant, true, nil
}

// RotateSecret rotates the secret on behalf of requester, who needs admin access.
func (v *vaultUseCase) RotateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
) (*vaultDomain.Secret, error) {
	return v.rotation.Rotate(ctx, requester, id, TriggerManual)
}

// ListSecrets returns active secrets the requester owns or holds an effective grant on.
func (v *vaultUseCase) ListSecrets(
	ctx context.Context,
	requester uuid.UUID,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionList, nil)
	entry.Metadata["resource"] = "secrets"

	secrets, err := v.listSecrets(ctx, requester, filter, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}
	return secrets, nil
}

func (v *vaultUseCase) listSecrets(
	ctx context.Context,
	requester uuid.UUID,
	filter vaultDomain.SecretFilter,
	entry *vaultDomain.AuditEntry,
) ([]*vaultDomain.Secret, error) {
	filter.AccessibleTo = requester
	filter.SharedIDs = nil
	filter.Offset, filter.Limit = normalizePage(filter.Offset, filter.Limit)

	if !filter.OwnedOnly {
		orgIDs, err := v.orgs.ListOrganizations(ctx, requester)
		if err != nil {
			return nil, err
		}
		grants, err := v.shares.ListActiveForUser(ctx, requester, orgIDs, v.now().UTC())
		if err != nil {
			return nil, err
		}
		seen := make(map[uuid.UUID]struct{}, len(grants))
		for _, g := range grants {
			if _, ok := seen[g.SecretID]; ok {
				continue
			}
			seen[g.SecretID] = struct{}{}
			filter.SharedIDs = append(filter.SharedIDs, g.SecretID)
		}
	}

	secrets, err := v.secrets.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	entry.Metadata["count"] = len(secrets)
	if err := v.runner.recordWithoutMutation(ctx, entry); err != nil {
		return nil, err
	}
	return secrets, nil
}

// GetAccessLogs returns the audit history of a secret, newest first. It requires admin access
// and remains available after a soft delete.
func (v *vaultUseCase) GetAccessLogs(
	ctx context.Context,
	requester, id uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionReadAudit, &id)

	logs, err := v.getAccessLogs(ctx, requester, id, offset, limit, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}
	return logs, nil
}

func (v *vaultUseCase) getAccessLogs(
	ctx context.Context,
	requester, id uuid.UUID,
	offset, limit int,
	entry *vaultDomain.AuditEntry,
) ([]*vaultDomain.AuditEntry, error) {
	secret, err := v.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckAccess(ctx, secret, requester, vaultDomain.PermissionAdmin); err != nil {
		return nil, err
	}

	offset, limit = normalizePage(offset, limit)
	logs, err := v.audit.ListBySecret(ctx, id, offset, limit)
	if err != nil {
		return nil, err
	}

	entry.Metadata["count"] = len(logs)
	if err := v.runner.recordWithoutMutation(ctx, entry); err != nil {
		return nil, err
	}
	return logs, nil
}

// ListShares returns every grant on the secret, including revoked ones. Only the owner may list.
func (v *vaultUseCase) ListShares(
	ctx context.Context,
	owner, id uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	entry := v.runner.newEntry(ctx, owner, vaultDomain.AuditActionList, &id)
	entry.Metadata["resource"] = "shares"

	grants, err := v.listShares(ctx, owner, id, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}
	return grants, nil
}

func (v *vaultUseCase) listShares(
	ctx context.Context,
	owner, id uuid.UUID,
	entry *vaultDomain.AuditEntry,
) ([]*vaultDomain.ShareGrant, error) {
	secret, err := v.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckOwner(secret, owner); err != nil {
		return nil, err
	}

	grants, err := v.shares.ListBySecret(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.Metadata["count"] = len(grants)
	if err := v.runner.recordWithoutMutation(ctx, entry); err != nil {
		return nil, err
	}
	return grants, nil
}

// TestCredential decrypts the secret and asks the provider validator whether it is live.
func (v *vaultUseCase) TestCredential(
	ctx context.Context,
	requester, id uuid.UUID,
) (*CredentialTestResult, error) {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionTest, &id)

	result, err := v.testCredential(ctx, requester, id, entry)
	if err != nil {
		return nil, v.runner.finish(ctx, entry, err)
	}
	return result, nil
}

func (v *vaultUseCase) testCredential(
	ctx context.Context,
	requester, id uuid.UUID,
	entry *vaultDomain.AuditEntry,
) (*CredentialTestResult, error) {
	secret, err := v.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.access.CheckAccess(ctx, secret, requester, vaultDomain.PermissionRead); err != nil {
		return nil, err
	}
	if secret.IsExpired(v.now()) {
		return nil, vaultDomain.ErrSecretExpired
	}

	plaintext, err := v.envelope.Decrypt(ctx, &secret.Bundle, secret.ID, secret.Version, secret.OwnerUserID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	result, err := v.validator.Validate(ctx, secret.Provider, secret.Type, plaintext)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrUnavailable) {
			err = apperrors.Wrap(vaultDomain.ErrValidatorUnavailable, err.Error())
		}
		return nil, err
	}

	entry.Metadata["provider"] = secret.Provider
	entry.Metadata["valid"] = result.Valid
	if err := v.runner.recordWithoutMutation(ctx, entry); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyAttestation checks the secret's current bundle digest against its attestation.
func (v *vaultUseCase) VerifyAttestation(ctx context.Context, requester, id uuid.UUID) (bool, error) {
	entry := v.runner.newEntry(ctx, requester, vaultDomain.AuditActionVerifyAttestation, &id)

	verified, err := v.verifyAttestation(ctx, requester, id, entry)
	if err != nil {
		return false, v.runner.finish(ctx, entry, err)
	}
	return verified, nil
}

func (v *vaultUseCase) verifyAttestation(
	ctx context.Context,
	requester, id uuid.UUID,
	entry *vaultDomain.AuditEntry,
) (bool, error) {
	secret, err := v.loadActive(ctx, id)
	if err != nil {
		return false, err
	}
	if err := v.access.CheckAccess(ctx, secret, requester, vaultDomain.PermissionRead); err != nil {
		return false, err
	}
	if secret.AttestationRef == "" {
		return false, vaultDomain.ErrNotAttested
	}

	verified, err := v.attestor.Verify(ctx, secret.AttestationRef, secret.Bundle.Digest())
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrUnavailable) {
			err = apperrors.Wrap(vaultDomain.ErrAttestorUnavailable, err.Error())
		}
		return false, err
	}
	if !verified {
		v.logger.Warn("attestation mismatch",
			slog.String("secret_id", id.String()),
			slog.Int("version", secret.Version),
			slog.String("alarm", "integrity"),
		)
	}

	entry.Metadata["verified"] = verified
	if err := v.runner.recordWithoutMutation(ctx, entry); err != nil {
		return false, err
	}
	return verified, nil
}

// RotateDueSecrets rotates, as the system actor, every secret whose policy interval has elapsed.
func (v *vaultUseCase) RotateDueSecrets(ctx context.Context, now time.Time) (*RotationReport, error) {
	return v.rotation.RotateDue(ctx, now)
}

// RotateMasterKey re-encrypts every secret still derived from a retired master key.
func (v *vaultUseCase) RotateMasterKey(ctx context.Context) (*RotationReport, error) {
	return v.rotation.RotateToCurrentMasterKey(ctx)
}

// PurgeArchivedBundles deletes archived bundles whose retention ended before before.
func (v *vaultUseCase) PurgeArchivedBundles(ctx context.Context, before time.Time) (int64, error) {
	return v.secrets.PurgeArchived(ctx, before)
}

// VerifyAuditLogs checks audit signatures in [start, end).
func (v *vaultUseCase) VerifyAuditLogs(
	ctx context.Context,
	start, end time.Time,
) (*AuditVerificationReport, error) {
	return v.audit.Verify(ctx, start, end)
}

// loadActive fetches a secret that has not been soft-deleted.
func (v *vaultUseCase) loadActive(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error) {
	secret, err := v.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if secret.IsDeleted() {
		return nil, vaultDomain.ErrSecretDeleted
	}
	return secret, nil
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return offset, limit
}

// NewVaultUseCase wires the vault from its stores and collaborators.
//
// orgs, attestor, validator and publisher may be nil, in which case organization grants never
// apply, secrets are never attested, credential tests report unavailability and no events are
// emitted.
func NewVaultUseCase(
	txManager database.TxManager,
	secrets SecretRepository,
	shares ShareRepository,
	auditRepo AuditRepository,
	envelope EnvelopeCipher,
	signer AuditSigner,
	orgs OrgMembership,
	publisher EventPublisher,
	attestor BlockchainAttestor,
	validator ProviderValidator,
	rotationCfg RotationConfig,
	logger *slog.Logger,
) VaultUseCase {
	return newVaultUseCase(
		txManager, secrets, shares, auditRepo, envelope, signer,
		orgs, publisher, attestor, validator, rotationCfg, logger, time.Now,
	)
}

func newVaultUseCase(
	txManager database.TxManager,
	secrets SecretRepository,
	shares ShareRepository,
	auditRepo AuditRepository,
	envelope EnvelopeCipher,
	signer AuditSigner,
	orgs OrgMembership,
	publisher EventPublisher,
	attestor BlockchainAttestor,
	validator ProviderValidator,
	rotationCfg RotationConfig,
	logger *slog.Logger,
	now func() time.Time,
) *vaultUseCase {
	if orgs == nil {
		orgs = NoOrgMembership{}
	}
	if validator == nil {
		validator = NoopProviderValidator{}
	}
	var attest *attestation
	if attestor == nil {
		attestor = NoopAttestor{}
	} else {
		attest = &attestation{attestor: attestor, secrets: secrets, logger: logger}
	}

	recorder := NewAuditRecorder(auditRepo, signer, logger, now)
	access := NewAccessControl(shares, orgs, now)
	runner := &operationRunner{txManager: txManager, recorder: recorder, logger: logger}
	events := &eventEmitter{publisher: publisher, logger: logger}

	return &vaultUseCase{
		secrets:   secrets,
		shares:    shares,
		audit:     recorder,
		access:    access,
		envelope:  envelope,
		orgs:      orgs,
		attestor:  attestor,
		validator: validator,
		attest:    attest,
		events:    events,
		runner:    runner,
		logger:    logger,
		now:       now,
		rotation: &RotationManager{
			secrets:  secrets,
			envelope: envelope,
			access:   access,
			attestor: attest,
			runner:   runner,
			events:   events,
			cfg:      rotationCfg,
			logger:   logger,
			now:      now,
		},
	}
}
