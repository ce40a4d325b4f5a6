package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// NoOrgMembership is an OrgMembership for deployments without organizations. Nobody is a member
// of anything, so organization grants never apply.
type NoOrgMembership struct{}

// IsMember always returns false.
func (NoOrgMembership) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

// ListOrganizations always returns no organizations.
func (NoOrgMembership) ListOrganizations(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

// NoopAttestor is a BlockchainAttestor that attests nothing.
type NoopAttestor struct{}

// Attest returns an empty reference, leaving the secret unattested.
func (NoopAttestor) Attest(context.Context, []byte) (string, error) {
	return "", nil
}

// Verify reports that no attestor is available.
func (NoopAttestor) Verify(context.Context, string, []byte) (bool, error) {
	return false, vaultDomain.ErrAttestorUnavailable
}

// NoopProviderValidator is a ProviderValidator for deployments without provider integrations.
type NoopProviderValidator struct{}

// Validate reports that no validator is available.
func (NoopProviderValidator) Validate(
	context.Context,
	string,
	vaultDomain.SecretType,
	[]byte,
) (*CredentialTestResult, error) {
	return nil, vaultDomain.ErrValidatorUnavailable
}

// attestation submits committed bundle digests to the attestor and stores the receipt. Failures
// are logged and leave the secret unattested; they never fail the calling operation.
type attestation struct {
	attestor BlockchainAttestor
	secrets  SecretRepository
	logger   *slog.Logger
}

// record attests the secret's current bundle and sets secret.AttestationRef on success. It must
// run after the bundle is committed so no receipt exists for a bundle that was never stored.
func (a *attestation) record(ctx context.Context, secret *vaultDomain.Secret) {
	if a == nil || a.attestor == nil {
		return
	}
	ref, err := a.attestor.Attest(ctx, secret.Bundle.Digest())
	if err == nil {
		err = a.secrets.SetAttestationRef(ctx, secret.ID, secret.Version, ref)
	}
	if err != nil {
		a.logger.Warn("attestation failed",
			slog.String("secret_id", secret.ID.String()),
			slog.Int("version", secret.Version),
			slog.Any("error", err),
		)
		return
	}
	secret.AttestationRef = ref
}
