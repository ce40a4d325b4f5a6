package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
	"github.com/allisson/secretvault/internal/metrics"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

const metricsDomain = "vault"

// vaultUseCaseWithMetrics decorates VaultUseCase with metrics instrumentation.
type vaultUseCaseWithMetrics struct {
	next    VaultUseCase
	metrics metrics.BusinessMetrics
}

// NewVaultUseCaseWithMetrics wraps a VaultUseCase with metrics recording.
func NewVaultUseCaseWithMetrics(useCase VaultUseCase, m metrics.BusinessMetrics) VaultUseCase {
	return &vaultUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (v *vaultUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusSuccess
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrForbidden), apperrors.Is(err, apperrors.ErrUnauthorized):
		status = metrics.StatusDenied
	default:
		status = metrics.StatusError
		if apperrors.Is(err, apperrors.ErrIntegrity) {
			v.metrics.RecordIntegrityFailure(ctx, operation)
		}
	}
	v.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	v.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// CreateSecret records metrics for secret creation.
func (v *vaultUseCaseWithMetrics) CreateSecret(
	ctx context.Context,
	owner uuid.UUID,
	in vaultDomain.DraftInput,
) (*vaultDomain.Secret, error) {
	start := time.Now()
	secret, err := v.next.CreateSecret(ctx, owner, in)
	v.record(ctx, "secret_create", start, err)
	return secret, err
}

// GetSecret records metrics for secret reads.
func (v *vaultUseCaseWithMetrics) GetSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	decrypt bool,
) (*vaultDomain.SecretValue, error) {
	start := time.Now()
	value, err := v.next.GetSecret(ctx, requester, id, decrypt)
	v.record(ctx, "secret_get", start, err)
	return value, err
}

// UpdateSecret records metrics for secret updates.
func (v *vaultUseCaseWithMetrics) UpdateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	in vaultDomain.UpdateInput,
) (*vaultDomain.Secret, error) {
	start := time.Now()
	secret, err := v.next.UpdateSecret(ctx, requester, id, in)
	v.record(ctx, "secret_update", start, err)
	return secret, err
}

// DeleteSecret records metrics for secret deletion.
func (v *vaultUseCaseWithMetrics) DeleteSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	opts DeleteOptions,
) error {
	start := time.Now()
	err := v.next.DeleteSecret(ctx, requester, id, opts)
	operation := "secret_delete"
	if opts.Permanent {
		operation = "secret_purge"
	}
	v.record(ctx, operation, start, err)
	return err
}

// ShareSecret records metrics for share grants.
func (v *vaultUseCaseWithMetrics) ShareSecret(
	ctx context.Context,
	owner, id uuid.UUID,
	grantee vaultDomain.Grantee,
	level vaultDomain.PermissionLevel,
	expiresAt *time.Time,
) (*vaultDomain.ShareGrant, error) {
	start := time.Now()
	grant, err := v.next.ShareSecret(ctx, owner, id, grantee, level, expiresAt)
	v.record(ctx, "secret_share", start, err)
	return grant, err
}

// RevokeShare records metrics for share revocation.
func (v *vaultUseCaseWithMetrics) RevokeShare(ctx context.Context, owner, shareID uuid.UUID) error {
	start := time.Now()
	err := v.next.RevokeShare(ctx, owner, shareID)
	v.record(ctx, "share_revoke", start, err)
	return err
}

// RotateSecret records metrics for manual rotation.
func (v *vaultUseCaseWithMetrics) RotateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
) (*vaultDomain.Secret, error) {
	start := time.Now()
	secret, err := v.next.RotateSecret(ctx, requester, id)
	v.record(ctx, "secret_rotate", start, err)
	return secret, err
}

// ListSecrets records metrics for secret listing.
func (v *vaultUseCaseWithMetrics) ListSecrets(
	ctx context.Context,
	requester uuid.UUID,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	start := time.Now()
	secrets, err := v.next.ListSecrets(ctx, requester, filter)
	v.record(ctx, "secret_list", start, err)
	return secrets, err
}

// GetAccessLogs records metrics for audit history reads.
func (v *vaultUseCaseWithMetrics) GetAccessLogs(
	ctx context.Context,
	requester, id uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	start := time.Now()
	logs, err := v.next.GetAccessLogs(ctx, requester, id, offset, limit)
	v.record(ctx, "access_logs_get", start, err)
	return logs, err
}

// ListShares records metrics for share listing.
func (v *vaultUseCaseWithMetrics) ListShares(
	ctx context.Context,
	owner, id uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	start := time.Now()
	grants, err := v.next.ListShares(ctx, owner, id)
	v.record(ctx, "share_list", start, err)
	return grants, err
}

// TestCredential records metrics for provider credential checks.
func (v *vaultUseCaseWithMetrics) TestCredential(
	ctx context.Context,
	requester, id uuid.UUID,
) (*CredentialTestResult, error) {
	start := time.Now()
	result, err := v.next.TestCredential(ctx, requester, id)
	v.record(ctx, "credential_test", start, err)
	return result, err
}

// VerifyAttestation records metrics for attestation checks.
func (v *vaultUseCaseWithMetrics) VerifyAttestation(
	ctx context.Context,
	requester, id uuid.UUID,
) (bool, error) {
	start := time.Now()
	verified, err := v.next.VerifyAttestation(ctx, requester, id)
	v.record(ctx, "attestation_verify", start, err)
	return verified, err
}

// RotateDueSecrets records metrics for scheduled rotation runs.
func (v *vaultUseCaseWithMetrics) RotateDueSecrets(ctx context.Context, now time.Time) (*RotationReport, error) {
	start := time.Now()
	report, err := v.next.RotateDueSecrets(ctx, now)
	v.record(ctx, "rotate_due", start, err)
	if report != nil {
		v.metrics.RecordRotations(ctx, "schedule", report.Rotated, report.Failed)
	}
	return report, err
}

// RotateMasterKey records metrics for master-key re-encryption runs.
func (v *vaultUseCaseWithMetrics) RotateMasterKey(ctx context.Context) (*RotationReport, error) {
	start := time.Now()
	report, err := v.next.RotateMasterKey(ctx)
	v.record(ctx, "rotate_master_key", start, err)
	if report != nil {
		v.metrics.RecordRotations(ctx, "master_key", report.Rotated, report.Failed)
	}
	return report, err
}

// PurgeArchivedBundles records metrics for archive cleanup.
func (v *vaultUseCaseWithMetrics) PurgeArchivedBundles(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	count, err := v.next.PurgeArchivedBundles(ctx, before)
	v.record(ctx, "archive_purge", start, err)
	return count, err
}

// VerifyAuditLogs records metrics for audit signature verification.
func (v *vaultUseCaseWithMetrics) VerifyAuditLogs(
	ctx context.Context,
	start, end time.Time,
) (*AuditVerificationReport, error) {
	began := time.Now()
	report, err := v.next.VerifyAuditLogs(ctx, start, end)
	v.record(ctx, "audit_verify", began, err)
	return report, err
}
