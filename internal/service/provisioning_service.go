package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

type profileRepository interface {
	ExistsForAccount(ctx context.Context, exec sqlx.ExtContext, accountID int64) (bool, error)
	CreateForAccount(ctx context.Context, exec sqlx.ExtContext, student *models.Student) (bool, error)
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error)
}

type unprovisionedAccountLister interface {
	ListWithoutStudent(ctx context.Context, exec sqlx.ExtContext) ([]models.Account, error)
}

// Provisioning sources used as metric labels.
const (
	ProvisionSourceSignup   = "signup"
	ProvisionSourceBackfill = "backfill"
)

// ProvisioningService guarantees every account owns exactly one student profile.
type ProvisioningService struct {
	db       txProvider
	profiles profileRepository
	accounts unprovisionedAccountLister
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewProvisioningService constructs ProvisioningService.
func NewProvisioningService(db txProvider, profiles profileRepository, accounts unprovisionedAccountLister, metrics *MetricsService, logger *zap.Logger) *ProvisioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{db: db, profiles: profiles, accounts: accounts, metrics: metrics, logger: logger, now: time.Now}
}

// OnAccountCreated creates the profile of a freshly inserted account inside
// the caller's transaction. It is a no-op when the profile already exists.
func (s *ProvisioningService) OnAccountCreated(ctx context.Context, exec sqlx.ExtContext, account *models.Account) (*models.Student, error) {
	created, student, err := s.provision(ctx, exec, account.ID)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.RecordProvisioned(ProvisionSourceSignup, 1)
		s.logger.Info("student profile provisioned", zap.Int64("account_id", account.ID), zap.String("student_id", student.StudentID))
	}
	return student, nil
}

func (s *ProvisioningService) provision(ctx context.Context, exec sqlx.ExtContext, accountID int64) (bool, *models.Student, error) {
	exists, err := s.profiles.ExistsForAccount(ctx, exec, accountID)
	if err != nil {
		return false, nil, internalError(err, "failed to check student profile")
	}
	if exists {
		return false, nil, nil
	}
	student := &models.Student{
		AccountID:  accountID,
		StudentID:  models.StudentIDForAccount(accountID),
		EnrolledAt: s.now().UTC(),
	}
	created, err := s.profiles.CreateForAccount(ctx, exec, student)
	if err != nil {
		return false, nil, writeError(err, "student profile", "student id already taken")
	}
	if !created {
		return false, nil, nil
	}
	return true, student, nil
}

// Backfill provisions a profile for every account that lacks one and returns
// how many were created. Running it twice creates nothing the second time.
func (s *ProvisioningService) Backfill(ctx context.Context) (count int, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	accounts, err := s.accounts.ListWithoutStudent(ctx, tx)
	if err != nil {
		return 0, internalError(err, "failed to list accounts without profile")
	}
	for i := range accounts {
		created, _, perr := s.provision(ctx, tx, accounts[i].ID)
		if perr != nil {
			err = perr
			return 0, err
		}
		if created {
			count++
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, internalError(err, "failed to commit backfill")
	}
	s.metrics.RecordProvisioned(ProvisionSourceBackfill, count)
	s.logger.Info("student profiles backfilled", zap.Int("created", count))
	return count, nil
}

// Rollback removes every student profile and returns how many were deleted.
func (s *ProvisioningService) Rollback(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, internalError(err, "failed to start transaction")
	}
	deleted, err := s.profiles.DeleteAll(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, internalError(err, "failed to delete student profiles")
	}
	if err := tx.Commit(); err != nil {
		return 0, internalError(err, "failed to commit rollback")
	}
	s.logger.Warn("student profiles removed", zap.Int64("deleted", deleted))
	return deleted, nil
}
