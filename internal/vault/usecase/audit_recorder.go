package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// AuditSigner signs and verifies audit entries.
type AuditSigner interface {
	Sign(ctx context.Context, entry *vaultDomain.AuditEntry) error
	Verify(ctx context.Context, entry *vaultDomain.AuditEntry) error
}

// AuditRecorder assigns sequence numbers to audit entries, signs them and appends them.
type AuditRecorder struct {
	repo   AuditRepository
	signer AuditSigner
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditRecorder creates an AuditRecorder.
func NewAuditRecorder(
	repo AuditRepository,
	signer AuditSigner,
	logger *slog.Logger,
	now func() time.Time,
) *AuditRecorder {
	if now == nil {
		now = time.Now
	}
	return &AuditRecorder{repo: repo, signer: signer, logger: logger, now: now}
}

// Record stamps, sequences, signs and appends entry.
//
// Entries for a secret take the next per-secret sequence number; entries without a secret
// have sequence 0. A concurrent writer taking the same sequence yields
// vaultDomain.ErrAuditSequenceConflict and the caller retries the whole unit of work.
func (r *AuditRecorder) Record(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	entry.ID = uuid.Must(uuid.NewV7())
	entry.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	entry.Sequence = 0

	if entry.SecretID != nil {
		seq, err := r.repo.NextSequence(ctx, *entry.SecretID)
		if err != nil {
			return err
		}
		entry.Sequence = seq
	}

	if err := r.signer.Sign(ctx, entry); err != nil {
		return apperrors.Wrap(vaultDomain.ErrAuditFailed, err.Error())
	}

	return r.repo.Append(ctx, entry)
}

// ListBySecret returns the entries of one secret, newest first.
func (r *AuditRecorder) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	return r.repo.ListBySecret(ctx, secretID, offset, limit)
}

// List returns entries matching filter.
func (r *AuditRecorder) List(ctx context.Context, filter vaultDomain.AuditFilter) ([]*vaultDomain.AuditEntry, error) {
	return r.repo.ListRange(ctx, filter)
}

// AuditVerificationReport summarizes a signature check over a range of entries.
type AuditVerificationReport struct {
	Total      int         `json:"total_checked"`
	Valid      int         `json:"signed_count"`
	Invalid    int         `json:"invalid_count"`
	InvalidIDs []uuid.UUID `json:"invalid_logs"`
}

// Passed reports whether every checked entry carried a valid signature.
func (r *AuditVerificationReport) Passed() bool {
	return r.Invalid == 0
}

// Verify checks the signature of every entry created in [start, end), page by page.
func (r *AuditRecorder) Verify(ctx context.Context, start, end time.Time) (*AuditVerificationReport, error) {
	const pageSize = 500
	report := &AuditVerificationReport{InvalidIDs: []uuid.UUID{}}

	for offset := 0; ; offset += pageSize {
		entries, err := r.repo.ListRange(ctx, vaultDomain.AuditFilter{
			CreatedAt: &start,
			Before:    &end,
			Offset:    offset,
			Limit:     pageSize,
		})
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			report.Total++
			if err := r.signer.Verify(ctx, entry); err != nil {
				report.Invalid++
				report.InvalidIDs = append(report.InvalidIDs, entry.ID)
				r.logger.Error("audit entry signature invalid",
					slog.String("audit_id", entry.ID.String()),
					slog.String("alarm", "integrity"),
					slog.Any("error", err),
				)
				continue
			}
			report.Valid++
		}

		if len(entries) < pageSize {
			return report, nil
		}
	}
}

// classifyError maps an operation error to the error kind stored in its audit entry.
func classifyError(err error) vaultDomain.ErrorKind {
	switch {
	case apperrors.Is(err, apperrors.ErrIntegrity):
		return vaultDomain.ErrorKindIntegrity
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return vaultDomain.ErrorKindValidation
	case apperrors.Is(err, apperrors.ErrNotFound):
		return vaultDomain.ErrorKindNotFound
	case apperrors.Is(err, apperrors.ErrForbidden), apperrors.Is(err, apperrors.ErrUnauthorized):
		return vaultDomain.ErrorKindPermissionDenied
	case apperrors.Is(err, apperrors.ErrExpired):
		return vaultDomain.ErrorKindExpired
	case apperrors.Is(err, apperrors.ErrConflict):
		return vaultDomain.ErrorKindConflict
	case apperrors.Is(err, apperrors.ErrStorage):
		return vaultDomain.ErrorKindStorage
	case apperrors.Is(err, apperrors.ErrUnavailable):
		return vaultDomain.ErrorKindUnavailable
	default:
		return vaultDomain.ErrorKindInternal
	}
}
