// Package dto provides data transfer objects for the vault HTTP API.
package dto

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	customValidation "github.com/allisson/secretvault/internal/validation"
)

// RotationPolicyRequest describes an automatic rotation schedule.
type RotationPolicyRequest struct {
	Enabled         bool  `json:"enabled"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

func (r *RotationPolicyRequest) toDomain() *vaultDomain.RotationPolicy {
	if r == nil {
		return nil
	}
	return &vaultDomain.RotationPolicy{
		Enabled:  r.Enabled,
		Interval: time.Duration(r.IntervalSeconds) * time.Second,
	}
}

// CreateSecretRequest contains the parameters for creating a secret.
// Value is the base64-encoded plaintext.
type CreateSecretRequest struct {
	Type           string                 `json:"type"`
	Provider       string                 `json:"provider"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	OrganizationID *string                `json:"organization_id"`
	Tags           []string               `json:"tags"`
	Metadata       map[string]any         `json:"metadata"`
	RotationPolicy *RotationPolicyRequest `json:"rotation_policy"`
	ExpiresAt      *time.Time             `json:"expires_at"`
	Value          string                 `json:"value"`
}

// Validate checks the request shape. Per-type rules are enforced by the vault.
func (r *CreateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Name, validation.Required, customValidation.NotBlank),
		validation.Field(&r.OrganizationID, customValidation.UUID),
		validation.Field(&r.Value, validation.Required, customValidation.Base64),
		validation.Field(&r.RotationPolicy),
	)
}

// ToDraftInput decodes the request into vault input. The returned Value must be zeroed by the
// caller once the vault call returns.
func (r *CreateSecretRequest) ToDraftInput() (vaultDomain.DraftInput, error) {
	value, err := base64.StdEncoding.DecodeString(r.Value)
	if err != nil {
		return vaultDomain.DraftInput{}, customValidation.WrapValidationError(err)
	}

	return vaultDomain.DraftInput{
		Type:           r.Type,
		Provider:       r.Provider,
		Name:           r.Name,
		Description:    r.Description,
		OrganizationID: parseOptionalUUID(r.OrganizationID),
		Tags:           r.Tags,
		Metadata:       r.Metadata,
		RotationPolicy: r.RotationPolicy.toDomain(),
		ExpiresAt:      r.ExpiresAt,
		Value:          value,
	}, nil
}

// Validate checks the rotation policy shape.
func (r RotationPolicyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IntervalSeconds, validation.Min(int64(0))),
	)
}

// UpdateSecretRequest contains the fields to change on a secret. Absent fields are left as is.
type UpdateSecretRequest struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	Provider       *string                `json:"provider"`
	Tags           []string               `json:"tags"`
	Metadata       map[string]any         `json:"metadata"`
	RotationPolicy *RotationPolicyRequest `json:"rotation_policy"`
	ExpiresAt      *time.Time             `json:"expires_at"`
	ClearExpiresAt bool                   `json:"clear_expires_at"`
	Value          *string                `json:"value"`
}

// Validate checks the request shape.
func (r *UpdateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, customValidation.NotBlank),
		validation.Field(&r.Value, validation.NilOrNotEmpty, customValidation.Base64),
		validation.Field(&r.RotationPolicy),
	)
}

// ToUpdateInput decodes the request into vault input. The returned Value must be zeroed by the
// caller once the vault call returns.
func (r *UpdateSecretRequest) ToUpdateInput() (vaultDomain.UpdateInput, error) {
	var value []byte
	if r.Value != nil {
		decoded, err := base64.StdEncoding.DecodeString(*r.Value)
		if err != nil {
			return vaultDomain.UpdateInput{}, customValidation.WrapValidationError(err)
		}
		value = decoded
	}

	return vaultDomain.UpdateInput{
		Name:           r.Name,
		Description:    r.Description,
		Provider:       r.Provider,
		Tags:           r.Tags,
		Metadata:       r.Metadata,
		RotationPolicy: r.RotationPolicy.toDomain(),
		ExpiresAt:      r.ExpiresAt,
		ClearExpiresAt: r.ClearExpiresAt,
		Value:          value,
	}, nil
}

// ShareSecretRequest grants a user or an organization access to a secret.
type ShareSecretRequest struct {
	GranteeUserID   *string    `json:"grantee_user_id"`
	GranteeOrgID    *string    `json:"grantee_org_id"`
	PermissionLevel string     `json:"permission_level"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// Validate checks the request shape.
func (r *ShareSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GranteeUserID,
			customValidation.UUID,
			validation.When(r.GranteeOrgID == nil, validation.Required),
		),
		validation.Field(&r.GranteeOrgID,
			customValidation.UUID,
			validation.When(r.GranteeUserID != nil, validation.Nil),
		),
		validation.Field(&r.PermissionLevel,
			validation.Required,
			validation.In(
				string(vaultDomain.PermissionRead),
				string(vaultDomain.PermissionWrite),
				string(vaultDomain.PermissionAdmin),
			),
		),
	)
}

// Grantee returns the validated grantee.
func (r *ShareSecretRequest) Grantee() vaultDomain.Grantee {
	return vaultDomain.Grantee{
		UserID: parseOptionalUUID(r.GranteeUserID),
		OrgID:  parseOptionalUUID(r.GranteeOrgID),
	}
}

func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}
