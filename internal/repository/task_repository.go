package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

const taskColumns = `id, project_id, title, description, is_completed, sort_order, created_at, completed_at`

// TaskRepository manages project checklist items.
type TaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	return orDefault(exec, r.db)
}

// ListByProject returns tasks in display order.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Task, error) {
	var tasks []models.Task
	query := "SELECT " + taskColumns + " FROM tasks WHERE project_id = $1 ORDER BY sort_order, created_at, id"
	if err := r.db.SelectContext(ctx, &tasks, query, projectID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := r.db.GetContext(ctx, &task, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) CountByProject(ctx context.Context, exec sqlx.ExtContext, projectID int64) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM tasks WHERE project_id = $1`, projectID); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) Create(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (project_id, title, description, is_completed, sort_order, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &task.ID, query,
		task.ProjectID, task.Title, task.Description, task.IsCompleted, task.SortOrder, task.CreatedAt, task.CompletedAt); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateCompletion persists the completion flag and timestamp.
func (r *TaskRepository) UpdateCompletion(ctx context.Context, task *models.Task) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET is_completed = $2, completed_at = $3 WHERE id = $1`, task.ID, task.IsCompleted, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(res)
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}
