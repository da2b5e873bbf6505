package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/middleware"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
	"github.com/mediare/family-trust-api/pkg/response"
)

// principal returns the authenticated claims or writes a 401 and returns nil.
func principal(c *gin.Context) *models.JWTClaims {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
