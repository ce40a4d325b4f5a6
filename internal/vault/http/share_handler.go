package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/secretvault/internal/httputil"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	"github.com/allisson/secretvault/internal/vault/http/dto"
)

// ShareHandler grants a user or an organization access to a secret.
// POST /v1/secrets/:id/shares
// Returns 201 Created with the grant.
func (h *VaultHandler) ShareHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req dto.ShareSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	grant, err := h.vaultUseCase.ShareSecret(
		c.Request.Context(),
		requester,
		id,
		req.Grantee(),
		vaultDomain.PermissionLevel(req.PermissionLevel),
		req.ExpiresAt,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapShareToResponse(grant))
}

// ListSharesHandler lists every grant on a secret.
// GET /v1/secrets/:id/shares
func (h *VaultHandler) ListSharesHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	grants, err := h.vaultUseCase.ListShares(c.Request.Context(), requester, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSharesToListResponse(grants))
}

// RevokeShareHandler deactivates a grant.
// DELETE /v1/shares/:id
// Returns 204 No Content.
func (h *VaultHandler) RevokeShareHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}
	shareID, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.vaultUseCase.RevokeShare(c.Request.Context(), requester, shareID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
