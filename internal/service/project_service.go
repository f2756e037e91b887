package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

const (
	defaultProjectPageSize = 15
	recentStatusLogLimit   = 10
)

type projectRepository interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, int, error)
	ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error)
	FindByID(ctx context.Context, id int64) (*models.ProjectListItem, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error)
	Create(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error
	Update(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error
	Delete(ctx context.Context, id int64) error
}

type projectTaskLister interface {
	ListByProject(ctx context.Context, projectID int64) ([]models.Task, error)
}

type statusLogStore interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.StatusLogEntry) error
	ListRecent(ctx context.Context, projectID int64, limit int) ([]models.StatusLogEntry, error)
}

// ProjectRequest is the create/update payload of a project.
type ProjectRequest struct {
	Title         string                 `json:"title" validate:"required,max=255"`
	Description   string                 `json:"description"`
	CourseID      int64                  `json:"course_id" validate:"required,gt=0"`
	StudentID     int64                  `json:"student_id" validate:"required,gt=0"`
	Status        models.ProjectStatus   `json:"status" validate:"omitempty,oneof=draft in_progress review completed archived"`
	Priority      models.ProjectPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Score         *int                   `json:"score" validate:"omitempty,gte=0,lte=100"`
	RepositoryURL string                 `json:"repository_url" validate:"omitempty,url,max=500"`
	DeployedURL   string                 `json:"deployed_url" validate:"omitempty,url,max=500"`
	Deadline      string                 `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
}

// TransitionRequest moves a project along the workflow.
type TransitionRequest struct {
	NewStatus models.ProjectStatus `json:"new_status"`
	Comment   string               `json:"comment"`
}

// ProjectService implements project CRUD and the status workflow.
type ProjectService struct {
	db        txProvider
	repo      projectRepository
	tasks     projectTaskLister
	logs      statusLogStore
	notifier  changeNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewProjectService constructs ProjectService.
func NewProjectService(db txProvider, repo projectRepository, tasks projectTaskLister, logs statusLogStore, notifier changeNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, location *time.Location) *ProjectService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &ProjectService{
		db:        db,
		repo:      repo,
		tasks:     tasks,
		logs:      logs,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  location,
		now:       time.Now,
	}
}

func (s *ProjectService) today() time.Time {
	return models.Today(s.now(), s.location)
}

// List returns annotated projects matching every set filter.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, *models.Pagination, error) {
	today := s.today()
	filter.Today = today
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list projects")
	}
	for i := range items {
		items[i].Annotate(today)
	}
	return items, newPagination(filter.Page, filter.PageSize, defaultProjectPageSize, total), nil
}

// ListAll returns every matching project without paging, for exports.
func (s *ProjectService) ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error) {
	today := s.today()
	filter.Today = today
	items, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list projects")
	}
	for i := range items {
		items[i].Annotate(today)
	}
	return items, nil
}

// Get returns the project with tasks, recent history and allowed transitions.
func (s *ProjectService) Get(ctx context.Context, id int64) (*models.ProjectDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "project")
	}
	item.Annotate(s.today())

	tasks, err := s.tasks.ListByProject(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load tasks")
	}
	logs, err := s.logs.ListRecent(ctx, id, recentStatusLogLimit)
	if err != nil {
		return nil, internalError(err, "failed to load status history")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	if logs == nil {
		logs = []models.StatusLogEntry{}
	}
	return &models.ProjectDetail{
		ProjectListItem:    *item,
		Tasks:              tasks,
		StatusLogs:         logs,
		AllowedTransitions: item.Status.AllowedTransitions(),
	}, nil
}

func (s *ProjectService) validate(req *ProjectRequest) (*time.Time, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid project payload")
	}
	deadline, err := parseDate(req.Deadline)
	if err != nil {
		return nil, appErrors.Field("deadline", "Enter a valid date.")
	}
	return deadline, nil
}

func checkScore(score *int, status models.ProjectStatus) error {
	if score == nil {
		return nil
	}
	if status == models.ProjectStatusCompleted || status == models.ProjectStatusArchived {
		return nil
	}
	return appErrors.Field("score", "Score can only be set for completed or archived projects.")
}

// Create inserts the project and its initial history entry atomically.
func (s *ProjectService) Create(ctx context.Context, req ProjectRequest, actorID *int64) (detail *models.ProjectDetail, err error) {
	deadline, err := s.validate(&req)
	if err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = models.ProjectStatusDraft
	}
	if req.Priority == "" {
		req.Priority = models.ProjectPriorityMedium
	}
	if err = checkScore(req.Score, req.Status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project := &models.Project{
		Title:         req.Title,
		Description:   req.Description,
		CourseID:      req.CourseID,
		StudentID:     req.StudentID,
		Status:        req.Status,
		Priority:      req.Priority,
		Score:         req.Score,
		RepositoryURL: req.RepositoryURL,
		DeployedURL:   req.DeployedURL,
		Deadline:      deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	project.Normalize(now)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, project); err != nil {
		err = writeError(err, "project", "project already exists")
		return nil, err
	}
	entry := &models.StatusLogEntry{
		ProjectID: project.ID,
		OldStatus: models.ProjectStatusDraft,
		NewStatus: project.Status,
		ChangedAt: now,
		ChangedBy: actorID,
		Comment:   models.ProjectCreatedComment,
	}
	if err = s.logs.Append(ctx, tx, entry); err != nil {
		err = internalError(err, "failed to record status history")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit project")
		return nil, err
	}

	notifyChanged(ctx, s.notifier)
	s.logger.Info("project created", zap.Int64("project_id", project.ID), zap.String("status", string(project.Status)))
	return s.Get(ctx, project.ID)
}

// Update rewrites the editable fields. A status change is validated against
// the workflow and recorded in the history like any other transition.
func (s *ProjectService) Update(ctx context.Context, id int64, req ProjectRequest, actorID *int64) (detail *models.ProjectDetail, err error) {
	deadline, err := s.validate(&req)
	if err != nil {
		return nil, err
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

	project, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		err = lookupError(err, "project")
		return nil, err
	}

	oldStatus := project.Status
	target := req.Status
	if target == "" {
		target = oldStatus
	}
	if target != oldStatus && !oldStatus.CanTransitionTo(target) {
		s.metrics.RecordTransition(oldStatus, target, TransitionRejected)
		err = invalidTransition(oldStatus, target)
		return nil, err
	}
	if err = checkScore(req.Score, target); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project.Title = req.Title
	project.Description = req.Description
	project.CourseID = req.CourseID
	project.StudentID = req.StudentID
	project.Score = req.Score
	project.RepositoryURL = req.RepositoryURL
	project.DeployedURL = req.DeployedURL
	project.Deadline = deadline
	if req.Priority != "" {
		project.Priority = req.Priority
	}
	project.Status = target
	if target == models.ProjectStatusCompleted && project.Score == nil {
		zero := 0
		project.Score = &zero
	}
	project.UpdatedAt = now
	project.Normalize(now)

	if err = s.repo.Update(ctx, tx, project); err != nil {
		err = writeError(err, "project", "project already exists")
		return nil, err
	}
	if target != oldStatus {
		entry := &models.StatusLogEntry{ProjectID: id, OldStatus: oldStatus, NewStatus: target, ChangedAt: now, ChangedBy: actorID}
		if err = s.logs.Append(ctx, tx, entry); err != nil {
			err = internalError(err, "failed to record status history")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit project")
		return nil, err
	}
	if target != oldStatus {
		s.metrics.RecordTransition(oldStatus, target, TransitionApplied)
	}

	notifyChanged(ctx, s.notifier)
	return s.Get(ctx, id)
}

// Transition applies one workflow step: it locks the row, records the
// previous status, saves the project and appends exactly one history entry.
// Nothing is written when the step is not allowed.
func (s *ProjectService) Transition(ctx context.Context, id int64, target models.ProjectStatus, actorID *int64, comment string) (project *models.Project, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	project, err = s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		err = lookupError(err, "project")
		return nil, err
	}

	oldStatus := project.Status
	if !target.Valid() || !project.CanTransitionTo(target) {
		s.metrics.RecordTransition(oldStatus, target, TransitionRejected)
		err = invalidTransition(oldStatus, target)
		return nil, err
	}

	now := s.now().UTC()
	project.Status = target
	if target == models.ProjectStatusCompleted && project.Score == nil {
		zero := 0
		project.Score = &zero
	}
	project.UpdatedAt = now
	project.Normalize(now)

	if err = s.repo.Update(ctx, tx, project); err != nil {
		s.metrics.RecordTransition(oldStatus, target, TransitionFailed)
		err = internalError(err, "failed to save project")
		return nil, err
	}
	entry := &models.StatusLogEntry{
		ProjectID: id,
		OldStatus: oldStatus,
		NewStatus: target,
		ChangedAt: now,
		ChangedBy: actorID,
		Comment:   comment,
	}
	if err = s.logs.Append(ctx, tx, entry); err != nil {
		s.metrics.RecordTransition(oldStatus, target, TransitionFailed)
		err = internalError(err, "failed to record status history")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		s.metrics.RecordTransition(oldStatus, target, TransitionFailed)
		err = internalError(err, "failed to commit transition")
		return nil, err
	}

	s.metrics.RecordTransition(oldStatus, target, TransitionApplied)
	s.logger.Info("project transitioned",
		zap.Int64("project_id", id),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(target)),
	)
	notifyChanged(ctx, s.notifier)
	return project, nil
}

// Delete removes the project together with its tasks and history.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "project")
	}
	notifyChanged(ctx, s.notifier)
	return nil
}

func invalidTransition(from, to models.ProjectStatus) error {
	message := fmt.Sprintf("cannot transition from %s to %s", from, to)
	details := map[string][]string{
		"new_status": {fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", to)},
	}
	return appErrors.WithDetails(appErrors.ErrInvalidTransition, message, details)
}
