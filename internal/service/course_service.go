package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

const defaultCoursePageSize = 10

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error)
	FindByID(ctx context.Context, id int64) (*models.CourseSummary, error)
	ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, id int64) (*models.CourseStats, error)
}

type projectCatalog interface {
	ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error)
}

type enrollmentCatalog interface {
	ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

// CourseRequest is the create/update payload of a course.
type CourseRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsActive    *bool  `json:"is_active"`
}

// CourseService manages courses.
type CourseService struct {
	repo        courseRepository
	projects    projectCatalog
	enrollments enrollmentCatalog
	notifier    changeNotifier
	validator   *validator.Validate
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, projects projectCatalog, enrollments enrollmentCatalog, notifier changeNotifier, validate *validator.Validate, logger *zap.Logger, location *time.Location) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &CourseService{
		repo:        repo,
		projects:    projects,
		enrollments: enrollments,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
		location:    location,
		now:         time.Now,
	}
}

func (s *CourseService) today() time.Time {
	return models.Today(s.now(), s.location)
}

// List returns annotated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list courses")
	}
	today := s.today()
	for i := range courses {
		courses[i].Annotate(today)
	}
	return courses, newPagination(filter.Page, filter.PageSize, defaultCoursePageSize, total), nil
}

// Get returns the course with statistics, projects and enrollments.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.CourseDetail, error) {
	summary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	today := s.today()
	summary.Annotate(today)

	stats, err := s.repo.Stats(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load course statistics")
	}
	projects, err := s.projects.ListAll(ctx, models.ProjectFilter{CourseID: &id, Today: today})
	if err != nil {
		return nil, internalError(err, "failed to load course projects")
	}
	for i := range projects {
		projects[i].Annotate(today)
	}
	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{CourseID: &id})
	if err != nil {
		return nil, internalError(err, "failed to load course enrollments")
	}
	if projects == nil {
		projects = []models.ProjectListItem{}
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return &models.CourseDetail{
		CourseSummary: *summary,
		Stats:         *stats,
		Projects:      projects,
		Enrollments:   enrollments,
	}, nil
}

func (s *CourseService) build(req CourseRequest, course *models.Course) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid course payload")
	}
	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return appErrors.Field("start_date", "Enter a valid date.")
	}
	end, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		return appErrors.Field("end_date", "Enter a valid date.")
	}
	if end.Before(start) {
		return appErrors.WithDetails(appErrors.ErrValidation, "End date must be after start date.", map[string][]string{
			"__all__": {"End date must be after start date."},
		})
	}
	course.Name = strings.TrimSpace(req.Name)
	course.Code = strings.TrimSpace(req.Code)
	course.Description = req.Description
	course.StartDate = start
	course.EndDate = end
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	return nil
}

// Create inserts a course with a unique code.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.CourseDetail, error) {
	course := &models.Course{IsActive: true, CreatedAt: s.now().UTC()}
	if err := s.build(req, course); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, course.Code, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, writeError(err, "course", "course code already exists")
	}
	notifyChanged(ctx, s.notifier)
	s.logger.Info("course created", zap.Int64("course_id", course.ID), zap.String("code", course.Code))
	return s.Get(ctx, course.ID)
}

// Update rewrites a course.
func (s *CourseService) Update(ctx context.Context, id int64, req CourseRequest) (*models.CourseDetail, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	course := existing.Course
	if err := s.build(req, &course); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, course.Code, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, writeError(err, "course", "course code already exists")
	}
	notifyChanged(ctx, s.notifier)
	return s.Get(ctx, id)
}

func (s *CourseService) ensureCodeFree(ctx context.Context, code string, excludeID int64) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to validate course code")
	}
	if exists {
		return appErrors.WithDetails(appErrors.ErrConflict, "course code already exists", map[string][]string{
			"code": {"Course with this Code already exists."},
		})
	}
	return nil
}

// Delete removes the course along with its enrollments and projects.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "course")
	}
	notifyChanged(ctx, s.notifier)
	return nil
}
