package http

import (
	"log/slog"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
	"github.com/allisson/secretvault/internal/httputil"
	vaultUseCase "github.com/allisson/secretvault/internal/vault/usecase"
)

// UserIDHeader carries the identity of the caller, set by the authenticating gateway in front
// of the vault.
const UserIDHeader = "X-User-ID"

// RequesterMiddleware resolves the requesting user from UserIDHeader and stores it in the request
// context together with the request id, which the vault copies into audit metadata.
//
// Error handling:
//   - Missing header → 401 Unauthorized
//   - Malformed or nil UUID → 401 Unauthorized
func RequesterMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(UserIDHeader)
		if header == "" {
			logger.Debug("requester missing", slog.String("header", UserIDHeader))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		userID, err := uuid.Parse(header)
		if err != nil || userID == uuid.Nil {
			logger.Debug("requester malformed", slog.String("header", UserIDHeader))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		ctx := WithRequester(c.Request.Context(), userID)
		if id := requestid.Get(c); id != "" {
			ctx = vaultUseCase.WithRequestID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
