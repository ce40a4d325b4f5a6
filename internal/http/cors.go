package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	vaultHTTP "github.com/allisson/secretvault/internal/vault/http"
)

const (
	wildcardOrigin = "*"
	corsMaxAge     = 12 * time.Hour
)

// createCORSMiddleware builds the CORS middleware for the vault API from a comma-separated
// origin list. It returns nil when CORS is disabled or the list holds no origin.
//
// A "*" entry allows every origin. Credentials are only allowed for an explicit origin list.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("cors enabled but no origins configured, cors will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowHeaders:  []string{"Content-Type", vaultHTTP.UserIDHeader, "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        corsMaxAge,
	}
	if slices.Contains(origins, wildcardOrigin) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}

	logger.Info("cors enabled",
		slog.Bool("all_origins", config.AllowAllOrigins),
		slog.Any("origins", origins))

	return cors.New(config)
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(originsStr string) []string {
	var origins []string
	for part := range strings.SplitSeq(originsStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
