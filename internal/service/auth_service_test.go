package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type accountRepoStub struct {
	accounts  map[int64]*models.Account
	lastLogin map[int64]time.Time
	nextID    int64
}

func newAccountRepoStub() *accountRepoStub {
	return &accountRepoStub{accounts: map[int64]*models.Account{}, lastLogin: map[int64]time.Time{}, nextID: 1}
}

func (r *accountRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error {
	account.ID = r.nextID
	r.nextID++
	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *accountRepoStub) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (r *accountRepoStub) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	for _, a := range r.accounts {
		if strings.EqualFold(a.Username, username) {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *accountRepoStub) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	for _, a := range r.accounts {
		if strings.EqualFold(a.Username, username) || strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepoStub) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	r.lastLogin[id] = at
	return nil
}

type profileReaderStub struct {
	profiles *profileRepoStub
}

func (s profileReaderStub) FindByAccountID(ctx context.Context, accountID int64) (*models.Student, error) {
	student, ok := s.profiles.byAccount[accountID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type failingProvisioner struct{}

func (failingProvisioner) OnAccountCreated(ctx context.Context, exec sqlx.ExtContext, account *models.Account) (*models.Student, error) {
	return nil, errors.New("profile insert failed")
}

func newAuthServiceForTest(t *testing.T) (*AuthService, *accountRepoStub, *profileRepoStub) {
	db, mock := newTxProviderMock(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	accounts := newAccountRepoStub()
	profiles := newProfileRepoStub()
	provisioner := NewProvisioningService(db, profiles, accountListerStub{profiles: profiles}, nil, nil)
	svc := NewAuthService(db, accounts, provisioner, profileReaderStub{profiles: profiles}, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "edu-project-tracker",
		BcryptCost:        bcrypt.MinCost,
	})
	return svc, accounts, profiles
}

func TestAuthServiceRegisterProvisionsStudent(t *testing.T) {
	svc, accounts, profiles := newAuthServiceForTest(t)

	info, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "Amy@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotNil(t, info.Student)
	assert.Equal(t, "STU00001", info.Student.StudentID)
	assert.Equal(t, "amy@example.com", info.Email)
	assert.Len(t, profiles.byAccount, 1)
	assert.NotEqual(t, "s3cret-pass", accounts.accounts[1].PasswordHash)
}

func TestAuthServiceRegisterDuplicate(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "amy@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Username: "AMY", Email: "other@example.com", Password: "s3cret-pass"})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestAuthServiceRegisterFailsWhenProvisioningFails(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	svc.provisioner = failingProvisioner{}

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "amy@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "a", Email: "nope", Password: "short"})
	appErr := assertAppError(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "username")
	assert.Contains(t, appErr.Details, "email")
	assert.Contains(t, appErr.Details, "password")
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	svc, accounts, _ := newAuthServiceForTest(t)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "amy@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "amy", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	require.NotNil(t, resp.Account.Student)
	assert.Contains(t, accounts.lastLogin, int64(1))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.AccountID)
	assert.Equal(t, "amy", claims.Username)
	assert.False(t, claims.IsStaff)
	assert.Equal(t, "edu-project-tracker", claims.Issuer)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, accounts, _ := newAuthServiceForTest(t)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "amy@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "amy", Password: "wrong-pass"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials.Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "wrong-pass"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials.Code)

	accounts.accounts[1].Active = false
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "amy", Password: "s3cret-pass"})
	assertAppError(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestAuthServiceValidateTokenRejectsForeignSignatures(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{AccountID: 1})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)

	_, err = svc.ValidateToken("garbage")
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "amy", Email: "amy@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	info, err := svc.Me(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "amy", info.Username)
	require.NotNil(t, info.Student)

	_, err = svc.Me(context.Background(), 99)
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}
