package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AccountInfo, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Me(ctx context.Context, accountID int64) (*models.AccountInfo, error)
	TokenTTL() time.Duration
}

// AuthHandlerConfig controls the auth cookie and the login hint.
type AuthHandlerConfig struct {
	CookieName   string
	CookieSecure bool
	APILoginPath string
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	config  AuthHandlerConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cfg AuthHandlerConfig) *AuthHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = "access_token"
	}
	return &AuthHandler{service: svc, config: cfg}
}

// Register godoc
// @Summary Register an account
// @Description Creates an account and its student profile
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req.IsStaff = false

	info, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, info)
}

// Login godoc
// @Summary Authenticate account
// @Description Authenticate by username and password; the token is also set as a cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req.IP = c.ClientIP()

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, res.AccessToken, int(h.service.TokenTTL().Seconds()), "/", "", h.config.CookieSecure, true)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout
// @Description Clears the auth cookie
// @Tags Authentication
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, "", -1, "/", "", h.config.CookieSecure, true)
	response.NoContent(c)
}

// Me godoc
// @Summary Current account
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info, err := h.service.Me(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// LoginHint answers the browser login path with directions to the API login
// and reports whether the caller already carries a valid session.
func (h *AuthHandler) LoginHint(c *gin.Context) {
	payload := gin.H{
		"login_url":     h.config.APILoginPath,
		"method":        http.MethodPost,
		"next":          c.Query("next"),
		"authenticated": false,
	}
	if claims := claimsFromContext(c); claims != nil {
		payload["authenticated"] = true
		payload["username"] = claims.Username
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
