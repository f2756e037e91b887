package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

const defaultStudentPageSize = 20

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error)
	FindByID(ctx context.Context, id int64) (*models.StudentSummary, error)
	UpdateGroup(ctx context.Context, id int64, group string) error
	Scores(ctx context.Context, id int64) ([]*int, error)
}

// UpdateStudentRequest edits the mutable part of a profile. The student
// number is fixed at provisioning time.
type UpdateStudentRequest struct {
	Group string `json:"group" validate:"max=50"`
}

// StudentService exposes student profiles.
type StudentService struct {
	repo        studentRepository
	projects    projectCatalog
	enrollments enrollmentCatalog
	validator   *validator.Validate
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, projects projectCatalog, enrollments enrollmentCatalog, validate *validator.Validate, logger *zap.Logger, location *time.Location) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &StudentService{repo: repo, projects: projects, enrollments: enrollments, validator: validate, logger: logger, location: location, now: time.Now}
}

// List returns students with their project counts.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	return students, newPagination(filter.Page, filter.PageSize, defaultStudentPageSize, total), nil
}

// Get returns the student page: projects, enrollments and average score.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.StudentDetail, error) {
	summary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	scores, err := s.repo.Scores(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load student scores")
	}
	today := models.Today(s.now(), s.location)
	projects, err := s.projects.ListAll(ctx, models.ProjectFilter{StudentID: &id, Today: today})
	if err != nil {
		return nil, internalError(err, "failed to load student projects")
	}
	for i := range projects {
		projects[i].Annotate(today)
	}
	enrollments, err := s.enrollments.ListAll(ctx, models.EnrollmentFilter{StudentID: &id})
	if err != nil {
		return nil, internalError(err, "failed to load student enrollments")
	}
	if projects == nil {
		projects = []models.ProjectListItem{}
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return &models.StudentDetail{
		StudentSummary: *summary,
		AverageScore:   models.AverageScore(scores),
		Projects:       projects,
		Enrollments:    enrollments,
	}, nil
}

// Update changes the group label.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if err := s.repo.UpdateGroup(ctx, id, strings.TrimSpace(req.Group)); err != nil {
		return nil, writeError(err, "student", "student conflict")
	}
	return s.Get(ctx, id)
}
