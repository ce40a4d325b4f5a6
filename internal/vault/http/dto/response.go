package dto

import (
	"time"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// RotationPolicyResponse is the rotation schedule of a secret.
type RotationPolicyResponse struct {
	Enabled         bool  `json:"enabled"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

// SecretResponse represents a secret in API responses. Encryption material is never included.
// SECURITY: Value carries plaintext and is only set for GET with decrypt=true.
type SecretResponse struct {
	ID             string                  `json:"id"`
	OwnerUserID    string                  `json:"owner_user_id"`
	OrganizationID *string                 `json:"organization_id,omitempty"`
	Type           string                  `json:"type"`
	Provider       string                  `json:"provider,omitempty"`
	Name           string                  `json:"name"`
	Description    string                  `json:"description,omitempty"`
	Version        int                     `json:"version"`
	CipherSuite    string                  `json:"cipher_suite,omitempty"`
	Tags           []string                `json:"tags"`
	Metadata       map[string]any          `json:"metadata"`
	RotationPolicy *RotationPolicyResponse `json:"rotation_policy,omitempty"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time              `json:"last_accessed_at,omitempty"`
	AccessCount    int64                   `json:"access_count"`
	LastRotatedAt  *time.Time              `json:"last_rotated_at,omitempty"`
	Attested       bool                    `json:"attested"`
	Value          []byte                  `json:"value,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// MapSecretToResponse converts a domain secret to an API response without its value.
func MapSecretToResponse(secret *vaultDomain.Secret) SecretResponse {
	response := SecretResponse{
		ID:             secret.ID.String(),
		OwnerUserID:    secret.OwnerUserID.String(),
		Type:           string(secret.Type),
		Provider:       secret.Provider,
		Name:           secret.Name,
		Description:    secret.Description,
		Version:        secret.Version,
		CipherSuite:    string(secret.CipherSuite),
		Tags:           secret.Tags,
		Metadata:       secret.Metadata,
		ExpiresAt:      secret.ExpiresAt,
		LastAccessedAt: secret.LastAccessedAt,
		AccessCount:    secret.AccessCount,
		LastRotatedAt:  secret.LastRotatedAt,
		Attested:       secret.AttestationRef != "",
		CreatedAt:      secret.CreatedAt,
		UpdatedAt:      secret.UpdatedAt,
	}
	if response.Tags == nil {
		response.Tags = []string{}
	}
	if response.Metadata == nil {
		response.Metadata = map[string]any{}
	}
	if secret.OrganizationID != nil {
		orgID := secret.OrganizationID.String()
		response.OrganizationID = &orgID
	}
	if secret.RotationPolicy != nil {
		response.RotationPolicy = &RotationPolicyResponse{
			Enabled:         secret.RotationPolicy.Enabled,
			IntervalSeconds: int64(secret.RotationPolicy.Interval / time.Second),
		}
	}
	return response
}

// MapSecretValueToResponse converts a secret and its plaintext to an API response.
// SECURITY: The response shares the plaintext slice. The caller zeroes it after writing.
func MapSecretValueToResponse(value *vaultDomain.SecretValue) SecretResponse {
	response := MapSecretToResponse(value.Secret)
	response.Value = value.Plaintext
	return response
}

// ListSecretsResponse represents a page of secrets.
type ListSecretsResponse struct {
	Data []SecretResponse `json:"data"`
}

// MapSecretsToListResponse converts domain secrets to a list response.
func MapSecretsToListResponse(secrets []*vaultDomain.Secret) ListSecretsResponse {
	data := make([]SecretResponse, 0, len(secrets))
	for _, secret := range secrets {
		data = append(data, MapSecretToResponse(secret))
	}
	return ListSecretsResponse{Data: data}
}

// ShareResponse represents a share grant in API responses.
type ShareResponse struct {
	ID              string     `json:"id"`
	SecretID        string     `json:"secret_id"`
	GranteeUserID   *string    `json:"grantee_user_id,omitempty"`
	GranteeOrgID    *string    `json:"grantee_org_id,omitempty"`
	PermissionLevel string     `json:"permission_level"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Active          bool       `json:"active"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

// MapShareToResponse converts a share grant to an API response.
func MapShareToResponse(grant *vaultDomain.ShareGrant) ShareResponse {
	response := ShareResponse{
		ID:              grant.ID.String(),
		SecretID:        grant.SecretID.String(),
		PermissionLevel: string(grant.PermissionLevel),
		ExpiresAt:       grant.ExpiresAt,
		Active:          grant.Active,
		CreatedBy:       grant.CreatedBy.String(),
		CreatedAt:       grant.CreatedAt,
		RevokedAt:       grant.RevokedAt,
	}
	if grant.GranteeUserID != nil {
		id := grant.GranteeUserID.String()
		response.GranteeUserID = &id
	}
	if grant.GranteeOrgID != nil {
		id := grant.GranteeOrgID.String()
		response.GranteeOrgID = &id
	}
	return response
}

// ListSharesResponse represents the grants of one secret.
type ListSharesResponse struct {
	Data []ShareResponse `json:"data"`
}

// MapSharesToListResponse converts share grants to a list response.
func MapSharesToListResponse(grants []*vaultDomain.ShareGrant) ListSharesResponse {
	data := make([]ShareResponse, 0, len(grants))
	for _, grant := range grants {
		data = append(data, MapShareToResponse(grant))
	}
	return ListSharesResponse{Data: data}
}

// AuditEntryResponse represents an audit entry in API responses.
type AuditEntryResponse struct {
	ID          string         `json:"id"`
	SecretID    *string        `json:"secret_id,omitempty"`
	Sequence    int64          `json:"sequence"`
	ActorUserID string         `json:"actor_user_id"`
	Action      string         `json:"action"`
	Success     bool           `json:"success"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Signed      bool           `json:"signed"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListAuditEntriesResponse represents a page of audit entries.
type ListAuditEntriesResponse struct {
	Data []AuditEntryResponse `json:"data"`
}

// MapAuditEntriesToListResponse converts audit entries to a list response.
func MapAuditEntriesToListResponse(entries []*vaultDomain.AuditEntry) ListAuditEntriesResponse {
	data := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		item := AuditEntryResponse{
			ID:          entry.ID.String(),
			Sequence:    entry.Sequence,
			ActorUserID: entry.ActorUserID.String(),
			Action:      string(entry.Action),
			Success:     entry.Success,
			ErrorKind:   string(entry.ErrorKind),
			Metadata:    entry.Metadata,
			Signed:      len(entry.Signature) > 0,
			CreatedAt:   entry.CreatedAt,
		}
		if entry.SecretID != nil {
			id := entry.SecretID.String()
			item.SecretID = &id
		}
		data = append(data, item)
	}
	return ListAuditEntriesResponse{Data: data}
}

// CredentialTestResponse is the outcome of a provider credential check.
type CredentialTestResponse struct {
	Valid     bool      `json:"valid"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// MapCredentialTestToResponse converts a credential test result to an API response.
func MapCredentialTestToResponse(result *vaultUseCase.CredentialTestResult) CredentialTestResponse {
	return CredentialTestResponse{
		Valid:     result.Valid,
		Message:   result.Message,
		CheckedAt: result.CheckedAt,
	}
}

// AttestationResponse reports whether the stored attestation matches the current content.
type AttestationResponse struct {
	SecretID string `json:"secret_id"`
	Verified bool   `json:"verified"`
}
