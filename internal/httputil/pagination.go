package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

// ParsePagination parses the offset and limit query parameters. A missing limit defaults to
// defaultLimit and limits above maxLimit are rejected. Errors wrap ErrInvalidInput.
func ParsePagination(c *gin.Context, defaultLimit, maxLimit int) (offset, limit int, err error) {
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidInput, "offset must be a non-negative integer")
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}

	return offset, limit, nil
}
