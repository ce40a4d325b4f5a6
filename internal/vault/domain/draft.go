package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/secretvault/internal/validation"
)

const (
	MaxSecretValueSize   = 64 * 1024
	MaxNameLength        = 255
	MaxDescriptionLength = 1024
	MaxTags              = 32
	MinRotationInterval  = time.Hour
)

// SecretDraft is a validated request to create a secret.
//
// Value is the plaintext; it is handed only to the envelope cipher and zeroed afterwards.
type SecretDraft struct {
	Type           SecretType
	Provider       string
	Name           string
	Description    string
	OrganizationID *uuid.UUID
	Tags           []string
	Metadata       Metadata
	RotationPolicy *RotationPolicy
	ExpiresAt      *time.Time
	Value          []byte
}

// DraftInput carries unvalidated create fields as received from a transport.
type DraftInput struct {
	Type           string
	Provider       string
	Name           string
	Description    string
	OrganizationID *uuid.UUID
	Tags           []string
	Metadata       map[string]any
	RotationPolicy *RotationPolicy
	ExpiresAt      *time.Time
	Value          []byte
}

// NewSecretDraft validates in against the rules of its secret type and returns a draft.
//
// Per-type rules: api_key requires a provider; certificate and ssh_key values must be PEM.
// Tags are de-duplicated and sorted.
func NewSecretDraft(in DraftInput) (*SecretDraft, error) {
	secretType := SecretType(in.Type)
	if !secretType.IsValid() {
		return nil, ErrInvalidSecretType
	}

	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, appValidation.NotBlank, validation.Length(1, MaxNameLength)),
		validation.Field(&in.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&in.Provider, appValidation.Provider),
		validation.Field(&in.Tags, validation.Length(0, MaxTags), validation.Each(appValidation.Tag)),
		validation.Field(&in.Value, validation.Required, validation.Length(1, MaxSecretValueSize)),
	); err != nil {
		return nil, appValidation.WrapValidationError(err)
	}

	if secretType.RequiresProvider() && in.Provider == "" {
		return nil, ErrProviderRequired
	}
	if secretType.RequiresPEM() {
		if err := validation.Validate(in.Value, appValidation.PEM); err != nil {
			return nil, ErrInvalidSecretValue
		}
	}
	if err := validateRotationPolicy(in.RotationPolicy); err != nil {
		return nil, err
	}

	metadata, err := NewMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	return &SecretDraft{
		Type:           secretType,
		Provider:       in.Provider,
		Name:           in.Name,
		Description:    in.Description,
		OrganizationID: in.OrganizationID,
		Tags:           normalizeTags(in.Tags),
		Metadata:       metadata,
		RotationPolicy: in.RotationPolicy,
		ExpiresAt:      in.ExpiresAt,
		Value:          in.Value,
	}, nil
}

// SecretUpdate is a validated request to change a secret. Nil fields are left unchanged.
//
// A non-nil Value re-encrypts the secret and bumps its version.
type SecretUpdate struct {
	Name           *string
	Description    *string
	Provider       *string
	Tags           []string
	Metadata       Metadata
	RotationPolicy *RotationPolicy
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	Value          []byte
}

// UpdateInput carries unvalidated update fields as received from a transport.
type UpdateInput struct {
	Name           *string
	Description    *string
	Provider       *string
	Tags           []string
	Metadata       map[string]any
	RotationPolicy *RotationPolicy
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	Value          []byte
}

// NewSecretUpdate validates in. The per-type rules are checked again by ApplyTo once the
// secret's type is known.
func NewSecretUpdate(in UpdateInput) (*SecretUpdate, error) {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, appValidation.NotBlank, validation.Length(1, MaxNameLength)),
		validation.Field(&in.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&in.Provider, appValidation.Provider),
		validation.Field(&in.Tags, validation.Length(0, MaxTags), validation.Each(appValidation.Tag)),
		validation.Field(&in.Value, validation.Length(0, MaxSecretValueSize)),
	); err != nil {
		return nil, appValidation.WrapValidationError(err)
	}
	if in.ExpiresAt != nil && in.ClearExpiresAt {
		return nil, appValidation.WrapValidationError(
			validation.NewError("validation_expires_at", "expires_at cannot be set and cleared"),
		)
	}
	if err := validateRotationPolicy(in.RotationPolicy); err != nil {
		return nil, err
	}

	var metadata Metadata
	if in.Metadata != nil {
		md, err := NewMetadata(in.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = md
	}

	var tags []string
	if in.Tags != nil {
		tags = normalizeTags(in.Tags)
	}

	return &SecretUpdate{
		Name:           in.Name,
		Description:    in.Description,
		Provider:       in.Provider,
		Tags:           tags,
		Metadata:       metadata,
		RotationPolicy: in.RotationPolicy,
		ExpiresAt:      in.ExpiresAt,
		ClearExpiresAt: in.ClearExpiresAt,
		Value:          in.Value,
	}, nil
}

// HasValue reports whether the update replaces the secret value.
func (u *SecretUpdate) HasValue() bool {
	return len(u.Value) > 0
}

// ApplyTo copies the descriptive fields of u onto s and checks the per-type rules against the
// result. It does not touch the encrypted bundle or version.
func (u *SecretUpdate) ApplyTo(s *Secret) error {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Provider != nil {
		s.Provider = *u.Provider
	}
	if u.Tags != nil {
		s.Tags = u.Tags
	}
	if u.Metadata != nil {
		s.Metadata = u.Metadata
	}
	if u.RotationPolicy != nil {
		s.RotationPolicy = u.RotationPolicy
	}
	if u.ExpiresAt != nil {
		s.ExpiresAt = u.ExpiresAt
	}
	if u.ClearExpiresAt {
		s.ExpiresAt = nil
	}

	if s.Type.RequiresProvider() && s.Provider == "" {
		return ErrProviderRequired
	}
	if u.HasValue() && s.Type.RequiresPEM() {
		if err := validation.Validate(u.Value, appValidation.PEM); err != nil {
			return ErrInvalidSecretValue
		}
	}
	return nil
}

func validateRotationPolicy(p *RotationPolicy) error {
	if p == nil || !p.Enabled {
		return nil
	}
	if p.Interval < MinRotationInterval {
		return appValidation.WrapValidationError(
			validation.NewError("validation_rotation_interval", "rotation interval must be at least 1h"),
		)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}
