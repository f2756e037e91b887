package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	"github.com/noah-isme/edu-project-tracker/pkg/database"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

const defaultEnrollmentPageSize = 20

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

// EnrollRequest links a student to a course.
type EnrollRequest struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	CourseID  int64 `json:"course_id" validate:"required,gt=0"`
	IsActive  *bool `json:"is_active"`
}

// UpdateEnrollmentRequest toggles the active flag.
type UpdateEnrollmentRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

var errDuplicateEnrollment = appErrors.WithDetails(appErrors.ErrConflict, "student already enrolled in course", map[string][]string{
	"__all__": {"Enrollment with this Student and Course already exists."},
})

// EnrollmentService manages course enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	notifier  changeNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, notifier changeNotifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, newPagination(filter.Page, filter.PageSize, defaultEnrollmentPageSize, total), nil
}

// Enroll creates the enrollment; a repeated pair is a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	exists, err := s.repo.Exists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, internalError(err, "failed to validate enrollment")
	}
	if exists {
		return nil, errDuplicateEnrollment
	}
	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, IsActive: true, EnrolledAt: s.now().UTC()}
	if req.IsActive != nil {
		enrollment.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errDuplicateEnrollment
		}
		return nil, writeError(err, "enrollment", "student already enrolled in course")
	}
	notifyChanged(ctx, s.notifier)
	return s.Get(ctx, enrollment.ID)
}

func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	return enrollment, nil
}

// Update toggles whether the enrollment is active.
func (s *EnrollmentService) Update(ctx context.Context, id int64, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	if err := s.repo.SetActive(ctx, id, *req.IsActive); err != nil {
		return nil, lookupError(err, "enrollment")
	}
	notifyChanged(ctx, s.notifier)
	return s.Get(ctx, id)
}

func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "enrollment")
	}
	notifyChanged(ctx, s.notifier)
	return nil
}
