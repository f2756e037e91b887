package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type authAccountRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type accountProvisioner interface {
	OnAccountCreated(ctx context.Context, exec sqlx.ExtContext, account *models.Account) (*models.Student, error)
}

type studentProfileReader interface {
	FindByAccountID(ctx context.Context, accountID int64) (*models.Student, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	BcryptCost        int
}

// AuthService provides registration, login and token validation.
type AuthService struct {
	db          txProvider
	repo        authAccountRepository
	provisioner accountProvisioner
	students    studentProfileReader
	validator   *validator.Validate
	logger      *zap.Logger
	config      AuthConfig
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(db txProvider, repo authAccountRepository, provisioner accountProvisioner, students studentProfileReader, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		db:          db,
		repo:        repo,
		provisioner: provisioner,
		students:    students,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// Register creates the account and its student profile in one transaction.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (info *models.AccountInfo, err error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, internalError(err, "failed to validate account")
	}
	if exists {
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "account already exists", map[string][]string{
			"username": {"A user with that username or email already exists."},
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	now := s.now().UTC()
	account := &models.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		IsStaff:      req.IsStaff,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, account); err != nil {
		err = writeError(err, "account", "account already exists")
		return nil, err
	}
	student, err := s.provisioner.OnAccountCreated(ctx, tx, account)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit account")
		return nil, err
	}

	s.logger.Info("account registered", zap.Int64("account_id", account.ID), zap.String("username", account.Username))
	return accountInfo(account, student), nil
}

// Login authenticates an account and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	account, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, internalError(err, "failed to fetch account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !account.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	accessToken, issuedAt, err := s.generateAccessToken(account)
	if err != nil {
		return nil, internalError(err, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, account.ID, issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	student, err := s.profile(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		Account:     *accountInfo(account, student),
	}, nil
}

// Me returns the account behind the token together with its profile.
func (s *AuthService) Me(ctx context.Context, accountID int64) (*models.AccountInfo, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, internalError(err, "failed to load account")
	}
	student, err := s.profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return accountInfo(account, student), nil
}

func (s *AuthService) profile(ctx context.Context, accountID int64) (*models.Student, error) {
	if s.students == nil {
		return nil, nil
	}
	student, err := s.students.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load student profile")
	}
	return student, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// TokenTTL is the lifetime of issued access tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.config.AccessTokenExpiry
}

func (s *AuthService) generateAccessToken(account *models.Account) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		AccountID: account.ID,
		Username:  account.Username,
		IsStaff:   account.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   strconv.FormatInt(account.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}

func accountInfo(account *models.Account, student *models.Student) *models.AccountInfo {
	return &models.AccountInfo{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
		IsStaff:  account.IsStaff,
		Student:  student,
	}
}
