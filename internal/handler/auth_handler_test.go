package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/middleware"
	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type fakeAuthSrv struct {
	registered models.RegisterRequest
	loginErr   error
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.AccountInfo, error) {
	f.registered = req
	return &models.AccountInfo{ID: 1, Username: req.Username, Student: &models.Student{StudentID: "STU00001"}}, nil
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "signed-token", ExpiresIn: 3600}, nil
}

func (f *fakeAuthSrv) Me(_ context.Context, accountID int64) (*models.AccountInfo, error) {
	return &models.AccountInfo{ID: accountID, Username: "amy"}, nil
}

func (f *fakeAuthSrv) TokenTTL() time.Duration {
	return time.Hour
}

func TestAuthHandlerRegisterIgnoresStaffFlag(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv, AuthHandlerConfig{})

	c, rec := newContext(http.MethodPost, "/auth/register", map[string]interface{}{"username": "amy", "email": "amy@example.com", "password": "s3cret-pass", "is_staff": true}, nil)
	h.Register(c)

	assertStatus(t, rec, http.StatusCreated)
	assert.False(t, srv.registered.IsStaff)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "STU00001")
}

func TestAuthHandlerLoginSetsCookie(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{}, AuthHandlerConfig{CookieName: "access_token"})

	c, rec := newContext(http.MethodPost, "/auth/login", map[string]string{"username": "amy", "password": "s3cret-pass"}, nil)
	h.Login(c)

	assertStatus(t, rec, http.StatusOK)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.Equal(t, "signed-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrInvalidCredentials}, AuthHandlerConfig{})

	c, rec := newContext(http.MethodPost, "/auth/login", map[string]string{"username": "amy", "password": "nope"}, nil)
	h.Login(c)

	assertStatus(t, rec, http.StatusUnauthorized)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error["code"])
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{}, AuthHandlerConfig{})

	c, rec := newContext(http.MethodPost, "/auth/logout", nil, nil)
	h.Logout(c)
	c.Writer.WriteHeaderNow()

	assertStatus(t, rec, http.StatusNoContent)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{}, AuthHandlerConfig{})

	c, rec := newContext(http.MethodGet, "/auth/me", nil, nil)
	h.Me(c)
	assertStatus(t, rec, http.StatusUnauthorized)

	c, rec = newContext(http.MethodGet, "/auth/me", nil, nil)
	withAccount(c, 4, false)
	h.Me(c)
	assertStatus(t, rec, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"id":4`)
}

func TestAuthHandlerLoginHint(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{}, AuthHandlerConfig{APILoginPath: "/api/v1/auth/login"})

	c, rec := newContext(http.MethodGet, "/accounts/login/?next=%2F", nil, nil)
	h.LoginHint(c)

	assertStatus(t, rec, http.StatusOK)
	data := string(decodeEnvelope(t, rec).Data)
	assert.Contains(t, data, `"login_url":"/api/v1/auth/login"`)
	assert.Contains(t, data, `"next":"/"`)
	assert.Contains(t, data, `"authenticated":false`)
	assert.NotContains(t, data, `"username"`)
}

func TestAuthHandlerLoginHintReportsSession(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{}, AuthHandlerConfig{APILoginPath: "/api/v1/auth/login"})

	c, rec := newContext(http.MethodGet, "/accounts/login/", nil, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: 4, Username: "amy"})
	h.LoginHint(c)

	assertStatus(t, rec, http.StatusOK)
	data := string(decodeEnvelope(t, rec).Data)
	assert.Contains(t, data, `"authenticated":true`)
	assert.Contains(t, data, `"username":"amy"`)
}

var errBoom = errors.New("boom")
