package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// maxAuditAttempts bounds retries when an audit sequence number is taken concurrently.
const maxAuditAttempts = 3

// operationRunner ties each vault operation to exactly one audit entry.
//
// On success the entry is appended in the same transaction as the mutation, so a failed append
// rolls the mutation back. On failure the entry is appended after the rollback.
type operationRunner struct {
	txManager database.TxManager
	recorder  *AuditRecorder
	logger    *slog.Logger
}

func (r *operationRunner) newEntry(
	ctx context.Context,
	actor uuid.UUID,
	action vaultDomain.AuditAction,
	secretID *uuid.UUID,
) *vaultDomain.AuditEntry {
	metadata := map[string]any{}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}
	var sid *uuid.UUID
	if secretID != nil {
		id := *secretID
		sid = &id
	}
	return &vaultDomain.AuditEntry{
		SecretID:    sid,
		ActorUserID: actor,
		Action:      action,
		Metadata:    metadata,
	}
}

// commit runs fn and the success audit append in one transaction.
func (r *operationRunner) commit(
	ctx context.Context,
	entry *vaultDomain.AuditEntry,
	fn func(ctx context.Context) error,
) error {
	var err error
	for range maxAuditAttempts {
		err = r.txManager.WithTx(ctx, func(txCtx context.Context) error {
			if err := fn(txCtx); err != nil {
				return err
			}
			entry.Success = true
			entry.ErrorKind = ""
			if err := r.recorder.Record(txCtx, entry); err != nil {
				if apperrors.Is(err, vaultDomain.ErrAuditSequenceConflict) {
					return err
				}
				return apperrors.Wrap(vaultDomain.ErrAuditFailed, err.Error())
			}
			return nil
		})
		if !apperrors.Is(err, vaultDomain.ErrAuditSequenceConflict) {
			break
		}
	}
	if err != nil {
		entry.Success = false
		if apperrors.Is(err, vaultDomain.ErrAuditSequenceConflict) {
			return apperrors.Wrap(vaultDomain.ErrAuditFailed, err.Error())
		}
	}
	return err
}

// recordWithoutMutation appends a success entry for operations that change nothing.
func (r *operationRunner) recordWithoutMutation(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	return r.commit(ctx, entry, func(context.Context) error { return nil })
}

// finish appends the failure entry for opErr, if any, and returns the error for the caller.
//
// The append uses a context detached from cancellation so that an abandoned request is still
// audited. When the append fails too, both errors are returned.
func (r *operationRunner) finish(ctx context.Context, entry *vaultDomain.AuditEntry, opErr error) error {
	if opErr == nil {
		return nil
	}

	entry.Success = false
	entry.ErrorKind = classifyError(opErr)
	if entry.ErrorKind == vaultDomain.ErrorKindIntegrity {
		r.logger.Error("integrity check failed",
			slog.String("alarm", "integrity"),
			slog.String("action", string(entry.Action)),
			slog.Any("secret_id", entry.SecretID),
			slog.String("actor_user_id", entry.ActorUserID.String()),
		)
	}

	auditCtx := context.WithoutCancel(ctx)
	var auditErr error
	for range maxAuditAttempts {
		auditErr = r.recorder.Record(auditCtx, entry)
		if !apperrors.Is(auditErr, vaultDomain.ErrAuditSequenceConflict) {
			break
		}
	}
	if auditErr != nil {
		r.logger.Error("failed to append failure audit entry",
			slog.String("action", string(entry.Action)),
			slog.Any("error", auditErr),
		)
		return apperrors.Join(opErr, apperrors.Wrap(vaultDomain.ErrAuditFailed, auditErr.Error()))
	}
	return opErr
}
