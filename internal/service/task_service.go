package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type taskRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	CountByProject(ctx context.Context, exec sqlx.ExtContext, projectID int64) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error
	UpdateCompletion(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error
}

type projectLocker interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error)
}

// TaskRequest creates a single task. Order zero means append.
type TaskRequest struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description"`
	Order       int    `json:"order" form:"order" validate:"gte=0"`
	IsCompleted bool   `json:"is_completed" form:"is_completed"`
}

// BulkTaskRequest holds one task title per line.
type BulkTaskRequest struct {
	Titles string `json:"titles" validate:"required"`
}

// TaskService manages checklist items of projects.
type TaskService struct {
	db        txProvider
	repo      taskRepository
	projects  projectLocker
	notifier  changeNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTaskService constructs TaskService.
func NewTaskService(db txProvider, repo taskRepository, projects projectLocker, notifier changeNotifier, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{db: db, repo: repo, projects: projects, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create adds a task to the project. Without an explicit order the task goes
// after the existing ones.
func (s *TaskService) Create(ctx context.Context, projectID int64, req TaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid task payload")
	}
	tasks, err := s.insert(ctx, projectID, []TaskRequest{req})
	if err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// BulkCreate adds one task per non-blank line, in line order.
func (s *TaskService) BulkCreate(ctx context.Context, projectID int64, req BulkTaskRequest) ([]models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid task payload")
	}
	var requests []TaskRequest
	for _, line := range strings.Split(req.Titles, "\n") {
		title := strings.TrimSpace(line)
		if title == "" {
			continue
		}
		if len(title) > 255 {
			return nil, appErrors.Field("titles", "Ensure each title has at most 255 characters.")
		}
		requests = append(requests, TaskRequest{Title: title})
	}
	if len(requests) == 0 {
		return nil, appErrors.Field("titles", "This field is required.")
	}
	return s.insert(ctx, projectID, requests)
}

// insert locks the project row so concurrent appends see consistent counts.
func (s *TaskService) insert(ctx context.Context, projectID int64, requests []TaskRequest) (created []models.Task, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.projects.GetForUpdate(ctx, tx, projectID); err != nil {
		err = lookupError(err, "project")
		return nil, err
	}
	count, err := s.repo.CountByProject(ctx, tx, projectID)
	if err != nil {
		err = internalError(err, "failed to count tasks")
		return nil, err
	}

	now := s.now().UTC()
	created = make([]models.Task, 0, len(requests))
	for _, req := range requests {
		task := models.Task{
			ProjectID:   projectID,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			IsCompleted: req.IsCompleted,
			SortOrder:   req.Order,
			CreatedAt:   now,
		}
		if task.SortOrder == 0 {
			task.SortOrder = count + 1
		}
		task.Normalize(now)
		if err = s.repo.Create(ctx, tx, &task); err != nil {
			err = writeError(err, "task", "task already exists")
			return nil, err
		}
		count++
		created = append(created, task)
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit tasks")
		return nil, err
	}
	notifyChanged(ctx, s.notifier)
	return created, nil
}

// Toggle flips completion of the task.
func (s *TaskService) Toggle(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "task")
	}
	task.Toggle(s.now().UTC())
	if err := s.repo.UpdateCompletion(ctx, task); err != nil {
		return nil, writeError(err, "task", "task conflict")
	}
	notifyChanged(ctx, s.notifier)
	return task, nil
}

// Delete removes the task and returns the project it belonged to.
func (s *TaskService) Delete(ctx context.Context, id int64) (int64, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return 0, lookupError(err, "task")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return 0, lookupError(err, "task")
	}
	notifyChanged(ctx, s.notifier)
	return task.ProjectID, nil
}
