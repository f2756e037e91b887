package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/logger"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// tokenFromRequest prefers the Authorization header and falls back to the auth cookie.
func tokenFromRequest(c *gin.Context, cookieName string) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil && value != "" {
			return value, nil
		}
	}
	return "", appErrors.ErrUnauthorized
}

func authenticate(c *gin.Context, validator TokenValidator, cookieName string) (*models.JWTClaims, error) {
	token, err := tokenFromRequest(c, cookieName)
	if err != nil {
		return nil, err
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	c.Set(ContextUserKey, claims)
	c.Set(logger.AccountIDKey, claims.AccountID)
	return claims, nil
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := authenticate(c, validator, cookieName); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalJWT attaches claims when present but does not block.
func OptionalJWT(validator TokenValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, _ = authenticate(c, validator, cookieName)
		c.Next()
	}
}

// RequireLogin redirects anonymous visitors to the login page with a next parameter.
func RequireLogin(validator TokenValidator, cookieName, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := authenticate(c, validator, cookieName); err != nil {
			target := loginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Claims returns the authenticated caller, if any.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
