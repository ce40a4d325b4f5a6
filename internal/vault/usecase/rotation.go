package usecase

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// RotationTrigger records why a secret was rotated.
type RotationTrigger string

const (
	TriggerManual    RotationTrigger = "manual"
	TriggerScheduled RotationTrigger = "scheduled"
	TriggerMasterKey RotationTrigger = "master_key"
)

// RotationConfig controls the rotation manager.
type RotationConfig struct {
	// MaxRetries bounds re-reads after losing a version compare-and-swap.
	MaxRetries int
	// ArchiveEnabled keeps the rotated-out bundle until ArchiveRetention has elapsed.
	ArchiveEnabled   bool
	ArchiveRetention time.Duration
	// BatchSize is the page size used by batch rotations.
	BatchSize int
}

// DefaultRotationConfig discards rotated-out bundles.
var DefaultRotationConfig = RotationConfig{MaxRetries: 3, BatchSize: 100}

// RotationManager re-encrypts secrets under fresh key material and a new version.
type RotationManager struct {
	secrets  SecretRepository
	envelope EnvelopeCipher
	access   *AccessControl
	attestor *attestation
	runner   *operationRunner
	events   *eventEmitter
	cfg      RotationConfig
	logger   *slog.Logger
	now      func() time.Time
}

// Rotate replaces the bundle of secret id with a fresh encryption of the same plaintext at
// version+1.
//
// A manual rotation requires admin access. Scheduled and master-key rotations may only be issued
// by vaultDomain.SystemActorID. A lost compare-and-swap re-reads the secret and tries again, up
// to cfg.MaxRetries times.
func (r *RotationManager) Rotate(
	ctx context.Context,
	requester, id uuid.UUID,
	trigger RotationTrigger,
) (*vaultDomain.Secret, error) {
	entry := r.runner.newEntry(ctx, requester, vaultDomain.AuditActionRotate, &id)
	entry.Metadata["trigger"] = string(trigger)

	secret, err := r.rotate(ctx, requester, id, trigger, entry)
	if err != nil {
		return nil, r.runner.finish(ctx, entry, err)
	}

	r.events.emit(ctx, vaultDomain.EventSecretRotated, vaultDomain.SecretEvent{
		SecretID:    secret.ID,
		OwnerUserID: secret.OwnerUserID,
		ActorUserID: requester,
		Version:     secret.Version,
		Type:        secret.Type,
		Trigger:     string(trigger),
		OccurredAt:  secret.UpdatedAt,
	})
	return secret, nil
}

func (r *RotationManager) rotate(
	ctx context.Context,
	requester, id uuid.UUID,
	trigger RotationTrigger,
	entry *vaultDomain.AuditEntry,
) (*vaultDomain.Secret, error) {
	if trigger != TriggerManual && requester != vaultDomain.SystemActorID {
		return nil, vaultDomain.ErrSystemTriggerNotAllowed
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		current, err := r.secrets.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.IsDeleted() {
			return nil, vaultDomain.ErrSecretDeleted
		}
		if trigger == TriggerManual {
			if err := r.access.CheckAccess(ctx, current, requester, vaultDomain.PermissionAdmin); err != nil {
				return nil, err
			}
		}

		entry.Metadata["from_version"] = current.Version
		entry.Metadata["to_version"] = current.Version + 1

		rotated, err := r.reencrypt(ctx, current)
		if err != nil {
			return nil, err
		}

		err = r.runner.commit(ctx, entry, func(txCtx context.Context) error {
			if r.cfg.ArchiveEnabled {
				if err := r.secrets.Archive(txCtx, r.archiveOf(current)); err != nil {
					return err
				}
			}
			return r.secrets.ReplaceBundle(txCtx, rotated, current.Revision)
		})
		if apperrors.Is(err, vaultDomain.ErrVersionConflict) {
			lastErr = err
			r.logger.Debug("rotation lost revision race, retrying",
				slog.String("secret_id", id.String()),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		r.attestor.record(ctx, rotated)
		return rotated, nil
	}
	return nil, lastErr
}

// reencrypt returns a copy of current sealed under new key material at version+1.
func (r *RotationManager) reencrypt(
	ctx context.Context,
	current *vaultDomain.Secret,
) (*vaultDomain.Secret, error) {
	plaintext, err := r.envelope.Decrypt(ctx, &current.Bundle, current.ID, current.Version, current.OwnerUserID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	rotated := *current
	rotated.Version = current.Version + 1
	bundle, err := r.envelope.Encrypt(ctx, plaintext, rotated.ID, rotated.Version, rotated.OwnerUserID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	rotated.Bundle = *bundle
	rotated.LastRotatedAt = &now
	rotated.UpdatedAt = now
	rotated.Revision = current.Revision + 1
	rotated.AttestationRef = ""
	return &rotated, nil
}

func (r *RotationManager) archiveOf(current *vaultDomain.Secret) *vaultDomain.ArchivedBundle {
	now := r.now().UTC()
	return &vaultDomain.ArchivedBundle{
		SecretID: current.ID,
		Version:  current.Version,
		Bundle: cryptoDomain.Bundle{
			Ciphertext:    slices.Clone(current.Ciphertext),
			WrappedDEK:    slices.Clone(current.WrappedDEK),
			Salt:          slices.Clone(current.Salt),
			Nonce:         slices.Clone(current.Nonce),
			CipherSuite:   current.CipherSuite,
			MasterKeyID:   current.MasterKeyID,
			KDFIterations: current.KDFIterations,
		},
		ArchivedAt: now,
		ExpiresAt:  now.Add(r.cfg.ArchiveRetention),
	}
}

// rotateBatch rotates every secret returned by list as the system actor.
//
// Rotated secrets drop out of list's result set, so each page is fetched at an offset equal to
// the number of failures so far. A page with no unseen ids ends the run.
func (r *RotationManager) rotateBatch(
	ctx context.Context,
	trigger RotationTrigger,
	list func(ctx context.Context, offset, limit int) ([]*vaultDomain.Secret, error),
) (*RotationReport, error) {
	report := &RotationReport{Errors: map[uuid.UUID]error{}}
	seen := map[uuid.UUID]struct{}{}
	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultRotationConfig.BatchSize
	}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := list(ctx, report.Failed, batchSize)
		if err != nil {
			return report, err
		}

		progressed := false
		for _, secret := range page {
			if _, ok := seen[secret.ID]; ok {
				continue
			}
			seen[secret.ID] = struct{}{}
			progressed = true

			if _, err := r.Rotate(ctx, vaultDomain.SystemActorID, secret.ID, trigger); err != nil {
				report.Failed++
				report.Errors[secret.ID] = err
				r.logger.Error("failed to rotate secret",
					slog.String("secret_id", secret.ID.String()),
					slog.String("trigger", string(trigger)),
					slog.Any("error", err),
				)
				continue
			}
			report.Rotated++
		}

		if !progressed || len(page) < batchSize {
			return report, nil
		}
	}
}

// RotateDue rotates every active secret whose rotation policy interval has elapsed at now.
func (r *RotationManager) RotateDue(ctx context.Context, now time.Time) (*RotationReport, error) {
	return r.rotateBatch(ctx, TriggerScheduled, func(ctx context.Context, offset, limit int) ([]*vaultDomain.Secret, error) {
		return r.secrets.ListDueForRotation(ctx, now, offset, limit)
	})
}

// RotateToCurrentMasterKey re-encrypts every active secret whose KEK was derived from a master
// key other than the active one.
func (r *RotationManager) RotateToCurrentMasterKey(ctx context.Context) (*RotationReport, error) {
	activeID, err := r.envelope.CurrentMasterKeyID(ctx)
	if err != nil {
		return nil, err
	}
	return r.rotateBatch(ctx, TriggerMasterKey, func(ctx context.Context, offset, limit int) ([]*vaultDomain.Secret, error) {
		return r.secrets.ListNotUsingMasterKey(ctx, activeID, offset, limit)
	})
}
