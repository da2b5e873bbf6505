package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
	"github.com/mediare/family-trust-api/pkg/response"
)

// FamilyParam is the route parameter naming the family a request targets.
const FamilyParam = "familyId"

type roleAuthorizer interface {
	AuthorizeRole(ctx context.Context, principalID, familyID string, roles ...models.MemberRole) error
}

// FamilyRole requires membership in the family named by the :familyId route
// parameter and, when roles are given, one of those roles there. Roles are
// per family; a parent in one family has no standing in another.
func FamilyRole(guard roleAuthorizer, roles ...models.MemberRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if err := guard.AuthorizeRole(c.Request.Context(), claims.UserID, c.Param(FamilyParam), roles...); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
