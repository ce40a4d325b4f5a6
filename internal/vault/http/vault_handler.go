package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	apperrors "github.com/allisson/secretvault/internal/errors"
	"github.com/allisson/secretvault/internal/httputil"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	"github.com/allisson/secretvault/internal/vault/http/dto"
	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// VaultHandler handles HTTP requests for secrets and their shares.
// Every route requires RequesterMiddleware; authorization is decided by the vault.
type VaultHandler struct {
	vaultUseCase vaultUseCase.VaultUseCase
	logger       *slog.Logger
}

// NewVaultHandler creates a new vault handler.
func NewVaultHandler(vaultUseCase vaultUseCase.VaultUseCase, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vaultUseCase: vaultUseCase,
		logger:       logger,
	}
}

// RegisterRoutes mounts the vault routes on group.
func (h *VaultHandler) RegisterRoutes(group *gin.RouterGroup) {
	secrets := group.Group("/secrets")
	{
		secrets.POST("", h.CreateHandler)
		secrets.GET("", h.ListHandler)
		secrets.GET("/:id", h.GetHandler)
		secrets.PATCH("/:id", h.UpdateHandler)
		secrets.DELETE("/:id", h.DeleteHandler)
		secrets.POST("/:id/rotate", h.RotateHandler)
		secrets.GET("/:id/audit", h.AccessLogsHandler)
		secrets.POST("/:id/shares", h.ShareHandler)
		secrets.GET("/:id/shares", h.ListSharesHandler)
		secrets.POST("/:id/test", h.TestCredentialHandler)
		secrets.GET("/:id/attestation", h.VerifyAttestationHandler)
	}
	group.DELETE("/shares/:id", h.RevokeShareHandler)
}

// requester returns the caller stored by RequesterMiddleware, writing 401 when absent.
func (h *VaultHandler) requester(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetRequester(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the :id URL parameter, writing 422 when it is not a UUID.
func (h *VaultHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid id: must be a UUID"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// queryBool parses an optional boolean query parameter, writing 400 when malformed.
func (h *VaultHandler) queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid %s parameter: must be a boolean", name), h.logger)
		return false, false
	}
	return value, true
}

// CreateHandler stores a new secret.
// POST /v1/secrets
// Returns 201 Created with the secret record (no value).
func (h *VaultHandler) CreateHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	var req dto.CreateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	in, err := req.ToDraftInput()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(in.Value)

	secret, err := h.vaultUseCase.CreateSecret(c.Request.Context(), requester, in)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSecretToResponse(secret))
}

// GetHandler returns a secret record, and its value when decrypt=true.
// GET /v1/secrets/:id?decrypt=true
// SECURITY: Plaintext is zeroed after the response is written.
func (h *VaultHandler) GetHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	decrypt, ok := h.queryBool(c, "decrypt")
	if !ok {
		return
	}

	value, err := h.vaultUseCase.GetSecret(c.Request.Context(), requester, id, decrypt)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(value.Plaintext)

	c.JSON(http.StatusOK, dto.MapSecretValueToResponse(value))
}

// UpdateHandler changes the descriptive fields and optionally the value of a secret.
// PATCH /v1/secrets/:id
func (h *VaultHandler) UpdateHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	in, err := req.ToUpdateInput()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(in.Value)

	secret, err := h.vaultUseCase.UpdateSecret(c.Request.Context(), requester, id, in)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretToResponse(secret))
}

// DeleteHandler soft deletes a secret, or purges it with permanent=true.
// DELETE /v1/secrets/:id?permanent=true&wipe=true
// Returns 204 No Content.
func (h *VaultHandler) DeleteHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	permanent, ok := h.queryBool(c, "permanent")
	if !ok {
		return
	}
	wipe, ok := h.queryBool(c, "wipe")
	if !ok {
		return
	}

	opts := vaultUseCase.DeleteOptions{Permanent: permanent, Wipe: wipe}
	if err := h.vaultUseCase.DeleteSecret(c.Request.Context(), requester, id, opts); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RotateHandler re-encrypts a secret under a fresh key.
// POST /v1/secrets/:id/rotate
func (h *VaultHandler) RotateHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	secret, err := h.vaultUseCase.RotateSecret(c.Request.Context(), requester, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretToResponse(secret))
}

// ListHandler lists the secrets visible to the requester.
// GET /v1/secrets?type=api_key&provider=stripe&tag=prod&owned=true&organization_id=...&offset=0&limit=50
func (h *VaultHandler) ListHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c, vaultUseCase.DefaultPageLimit, vaultUseCase.MaxPageLimit)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	owned, ok := h.queryBool(c, "owned")
	if !ok {
		return
	}

	filter := vaultDomain.SecretFilter{
		OwnedOnly: owned,
		Type:      vaultDomain.SecretType(c.Query("type")),
		Provider:  c.Query("provider"),
		Tags:      c.QueryArray("tag"),
		Offset:    offset,
		Limit:     limit,
	}
	if raw := c.Query("organization_id"); raw != "" {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid organization_id: must be a UUID"), h.logger)
			return
		}
		filter.OrganizationID = &orgID
	}

	secrets, err := h.vaultUseCase.ListSecrets(c.Request.Context(), requester, filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// AccessLogsHandler returns the audit trail of a secret.
// GET /v1/secrets/:id/audit?offset=0&limit=50
func (h *VaultHandler) AccessLogsHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c, vaultUseCase.DefaultPageLimit, vaultUseCase.MaxPageLimit)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	entries, err := h.vaultUseCase.GetAccessLogs(c.Request.Context(), requester, id, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAuditEntriesToListResponse(entries))
}

// TestCredentialHandler checks the secret value against its provider.
// POST /v1/secrets/:id/test
func (h *VaultHandler) TestCredentialHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.vaultUseCase.TestCredential(c.Request.Context(), requester, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialTestToResponse(result))
}

// VerifyAttestationHandler checks the recorded attestation of a secret.
// GET /v1/secrets/:id/attestation
func (h *VaultHandler) VerifyAttestationHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	verified, err := h.vaultUseCase.VerifyAttestation(c.Request.Context(), requester, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.AttestationResponse{SecretID: id.String(), Verified: verified})
}
