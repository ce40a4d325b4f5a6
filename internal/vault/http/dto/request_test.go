package dto

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

func strPtr(s string) *string { return &s }

func TestCreateSecretRequest_Validate(t *testing.T) {
	valid := func() CreateSecretRequest {
		return CreateSecretRequest{
			Type:     "api_key",
			Provider: "stripe",
			Name:     "billing",
			Value:    base64.StdEncoding.EncodeToString([]byte("sk_live_123")),
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateSecretRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(r *CreateSecretRequest) {}},
		{name: "missing type", mutate: func(r *CreateSecretRequest) { r.Type = "" }, wantErr: "type"},
		{name: "blank name", mutate: func(r *CreateSecretRequest) { r.Name = "   " }, wantErr: "name"},
		{name: "missing value", mutate: func(r *CreateSecretRequest) { r.Value = "" }, wantErr: "value"},
		{name: "invalid base64", mutate: func(r *CreateSecretRequest) { r.Value = "%%%" }, wantErr: "base64"},
		{
			name:    "invalid organization id",
			mutate:  func(r *CreateSecretRequest) { r.OrganizationID = strPtr("acme") },
			wantErr: "organization_id",
		},
		{
			name: "negative rotation interval",
			mutate: func(r *CreateSecretRequest) {
				r.RotationPolicy = &RotationPolicyRequest{Enabled: true, IntervalSeconds: -1}
			},
			wantErr: "rotation_policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateSecretRequest_ToDraftInput(t *testing.T) {
	orgID := uuid.Must(uuid.NewV7())
	expiresAt := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	req := CreateSecretRequest{
		Type:           "api_key",
		Provider:       "stripe",
		Name:           "billing",
		OrganizationID: strPtr(orgID.String()),
		Tags:           []string{"prod"},
		Metadata:       map[string]any{"team": "payments"},
		RotationPolicy: &RotationPolicyRequest{Enabled: true, IntervalSeconds: 86400},
		ExpiresAt:      &expiresAt,
		Value:          base64.StdEncoding.EncodeToString([]byte("sk_live_123")),
	}

	in, err := req.ToDraftInput()
	require.NoError(t, err)

	assert.Equal(t, "api_key", in.Type)
	assert.Equal(t, "stripe", in.Provider)
	require.NotNil(t, in.OrganizationID)
	assert.Equal(t, orgID, *in.OrganizationID)
	assert.Equal(t, []byte("sk_live_123"), in.Value)
	require.NotNil(t, in.RotationPolicy)
	assert.Equal(t, 24*time.Hour, in.RotationPolicy.Interval)
	assert.Equal(t, &expiresAt, in.ExpiresAt)
}

func TestUpdateSecretRequest(t *testing.T) {
	t.Run("EmptyRequestIsValid", func(t *testing.T) {
		req := UpdateSecretRequest{}
		assert.NoError(t, req.Validate())

		in, err := req.ToUpdateInput()
		require.NoError(t, err)
		assert.Nil(t, in.Value)
		assert.Nil(t, in.Name)
	})

	t.Run("BlankName", func(t *testing.T) {
		req := UpdateSecretRequest{Name: strPtr(" ")}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("InvalidValue", func(t *testing.T) {
		req := UpdateSecretRequest{Value: strPtr("***")}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "value")
	})

	t.Run("DecodesValue", func(t *testing.T) {
		req := UpdateSecretRequest{
			Name:           strPtr("renamed"),
			Value:          strPtr(base64.StdEncoding.EncodeToString([]byte("new"))),
			ClearExpiresAt: true,
		}
		require.NoError(t, req.Validate())

		in, err := req.ToUpdateInput()
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), in.Value)
		assert.Equal(t, "renamed", *in.Name)
		assert.True(t, in.ClearExpiresAt)
	})
}

func TestShareSecretRequest_Validate(t *testing.T) {
	userID := uuid.Must(uuid.NewV7()).String()
	orgID := uuid.Must(uuid.NewV7()).String()

	tests := []struct {
		name    string
		req     ShareSecretRequest
		wantErr string
	}{
		{
			name: "user grantee",
			req:  ShareSecretRequest{GranteeUserID: &userID, PermissionLevel: "read"},
		},
		{
			name: "org grantee",
			req:  ShareSecretRequest{GranteeOrgID: &orgID, PermissionLevel: "admin"},
		},
		{
			name:    "no grantee",
			req:     ShareSecretRequest{PermissionLevel: "read"},
			wantErr: "grantee_user_id",
		},
		{
			name:    "both grantees",
			req:     ShareSecretRequest{GranteeUserID: &userID, GranteeOrgID: &orgID, PermissionLevel: "read"},
			wantErr: "grantee_org_id",
		},
		{
			name:    "unknown level",
			req:     ShareSecretRequest{GranteeUserID: &userID, PermissionLevel: "owner"},
			wantErr: "permission_level",
		},
		{
			name:    "invalid user id",
			req:     ShareSecretRequest{GranteeUserID: strPtr("bob"), PermissionLevel: "read"},
			wantErr: "grantee_user_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestShareSecretRequest_Grantee(t *testing.T) {
	userID := uuid.Must(uuid.NewV7())
	req := ShareSecretRequest{GranteeUserID: strPtr(userID.String()), PermissionLevel: "write"}

	grantee := req.Grantee()
	require.NoError(t, grantee.Validate())
	assert.Equal(t, vaultDomain.UserGrantee(userID), grantee)
}
