// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// MockVaultUseCase is a mock implementation of VaultUseCase for testing.
type MockVaultUseCase struct {
	mock.Mock
}

// NewMockVaultUseCase creates a MockVaultUseCase whose expectations are asserted on cleanup.
func NewMockVaultUseCase(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockVaultUseCase {
	m := &MockVaultUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// CreateSecret mocks the CreateSecret method of VaultUseCase.
func (m *MockVaultUseCase) CreateSecret(
	ctx context.Context,
	owner uuid.UUID,
	in vaultDomain.DraftInput,
) (*vaultDomain.Secret, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.Secret), args.Error(1)
}

// GetSecret mocks the GetSecret method of VaultUseCase.
func (m *MockVaultUseCase) GetSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	decrypt bool,
) (*vaultDomain.SecretValue, error) {
	args := m.Called(ctx, requester, id, decrypt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.SecretValue), args.Error(1)
}

// UpdateSecret mocks the UpdateSecret method of VaultUseCase.
func (m *MockVaultUseCase) UpdateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	in vaultDomain.UpdateInput,
) (*vaultDomain.Secret, error) {
	args := m.Called(ctx, requester, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.Secret), args.Error(1)
}

// DeleteSecret mocks the DeleteSecret method of VaultUseCase.
func (m *MockVaultUseCase) DeleteSecret(
	ctx context.Context,
	requester, id uuid.UUID,
	opts vaultUseCase.DeleteOptions,
) error {
	args := m.Called(ctx, requester, id, opts)
	return args.Error(0)
}

// ShareSecret mocks the ShareSecret method of VaultUseCase.
func (m *MockVaultUseCase) ShareSecret(
	ctx context.Context,
	owner, id uuid.UUID,
	grantee vaultDomain.Grantee,
	level vaultDomain.PermissionLevel,
	expiresAt *time.Time,
) (*vaultDomain.ShareGrant, error) {
	args := m.Called(ctx, owner, id, grantee, level, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.ShareGrant), args.Error(1)
}

// RevokeShare mocks the RevokeShare method of VaultUseCase.
func (m *MockVaultUseCase) RevokeShare(ctx context.Context, owner, shareID uuid.UUID) error {
	args := m.Called(ctx, owner, shareID)
	return args.Error(0)
}

// RotateSecret mocks the RotateSecret method of VaultUseCase.
func (m *MockVaultUseCase) RotateSecret(
	ctx context.Context,
	requester, id uuid.UUID,
) (*vaultDomain.Secret, error) {
	args := m.Called(ctx, requester, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.Secret), args.Error(1)
}

// ListSecrets mocks the ListSecrets method of VaultUseCase.
func (m *MockVaultUseCase) ListSecrets(
	ctx context.Context,
	requester uuid.UUID,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	args := m.Called(ctx, requester, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vaultDomain.Secret), args.Error(1)
}

// GetAccessLogs mocks the GetAccessLogs method of VaultUseCase.
func (m *MockVaultUseCase) GetAccessLogs(
	ctx context.Context,
	requester, id uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	args := m.Called(ctx, requester, id, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vaultDomain.AuditEntry), args.Error(1)
}

// ListShares mocks the ListShares method of VaultUseCase.
func (m *MockVaultUseCase) ListShares(
	ctx context.Context,
	owner, id uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vaultDomain.ShareGrant), args.Error(1)
}

// TestCredential mocks the TestCredential method of VaultUseCase.
func (m *MockVaultUseCase) TestCredential(
	ctx context.Context,
	requester, id uuid.UUID,
) (*vaultUseCase.CredentialTestResult, error) {
	args := m.Called(ctx, requester, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultUseCase.CredentialTestResult), args.Error(1)
}

// VerifyAttestation mocks the VerifyAttestation method of VaultUseCase.
func (m *MockVaultUseCase) VerifyAttestation(ctx context.Context, requester, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, requester, id)
	return args.Bool(0), args.Error(1)
}

// RotateDueSecrets mocks the RotateDueSecrets method of VaultUseCase.
func (m *MockVaultUseCase) RotateDueSecrets(
	ctx context.Context,
	now time.Time,
) (*vaultUseCase.RotationReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultUseCase.RotationReport), args.Error(1)
}

// RotateMasterKey mocks the RotateMasterKey method of VaultUseCase.
func (m *MockVaultUseCase) RotateMasterKey(ctx context.Context) (*vaultUseCase.RotationReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultUseCase.RotationReport), args.Error(1)
}

// PurgeArchivedBundles mocks the PurgeArchivedBundles method of VaultUseCase.
func (m *MockVaultUseCase) PurgeArchivedBundles(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// VerifyAuditLogs mocks the VerifyAuditLogs method of VaultUseCase.
func (m *MockVaultUseCase) VerifyAuditLogs(
	ctx context.Context,
	start, end time.Time,
) (*vaultUseCase.AuditVerificationReport, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultUseCase.AuditVerificationReport), args.Error(1)
}

var _ vaultUseCase.VaultUseCase = (*MockVaultUseCase)(nil)
