package handlers

import (
	"net/http"

	"example.com/coverlane/services/claims/internal/claims"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors to HTTP responses. Unexpected errors are
// logged server-side and returned as an opaque 500 so internals never leak
// to callers.
func respondError(c *gin.Context, err error) {
	switch {
	case claims.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, claims.ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
	case errors.Is(err, claims.ErrClaimNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
	case errors.Is(err, claims.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "claim does not belong to this wallet"})
	case errors.Is(err, claims.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, claims.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, claims.ErrSearchUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "claim search is not available"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
