package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

// RequireStaff restricts a route to staff accounts. It must run after JWT.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.IsStaff {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "staff access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
