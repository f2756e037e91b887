package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

const projectPageSize = 15

const projectColumns = `p.id, p.title, p.description, p.course_id, p.student_id, p.status, p.priority, p.score,
p.repository_url, p.deployed_url, p.created_at, p.updated_at, p.deadline, p.completed_at`

const projectListSelect = `SELECT ` + projectColumns + `,
c.name AS course_name, c.code AS course_code, s.student_id AS student_code, a.username AS student_username,
COALESCE(t.task_count, 0) AS task_count, COALESCE(t.completed_task_count, 0) AS completed_task_count
FROM projects p
JOIN courses c ON c.id = p.course_id
JOIN students s ON s.id = p.student_id
JOIN accounts a ON a.id = s.account_id
LEFT JOIN (
    SELECT project_id, COUNT(*) AS task_count, COUNT(*) FILTER (WHERE is_completed) AS completed_task_count
    FROM tasks GROUP BY project_id
) t ON t.project_id = p.id`

// openStatuses are the states in which a missed deadline counts as overdue.
var openStatuses = []interface{}{models.ProjectStatusDraft, models.ProjectStatusInProgress, models.ProjectStatusReview}

// ProjectRepository manages persistence for projects.
type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	return orDefault(exec, r.db)
}

// projectWhere turns the filter into independent AND-ed conditions.
func projectWhere(filter models.ProjectFilter) *where {
	w := &where{}
	if filter.Status != "" {
		w.add("p.status = $%d", filter.Status)
	}
	if filter.CourseID != nil {
		w.add("p.course_id = $%d", *filter.CourseID)
	}
	if filter.StudentID != nil {
		w.add("p.student_id = $%d", *filter.StudentID)
	}
	if filter.Priority != "" {
		w.add("p.priority = $%d", filter.Priority)
	}
	if filter.Search != "" {
		w.add("LOWER(p.title) LIKE $%d", likePattern(filter.Search))
	}
	if filter.Overdue {
		w.add("p.deadline < $%d", filter.Today)
		w.in("p.status", openStatuses...)
	}
	return w
}

func projectOrder(filter models.ProjectFilter) string {
	allowedSorts := map[string]string{
		"title":      "p.title",
		"deadline":   "p.deadline",
		"priority":   "p.priority",
		"status":     "p.status",
		"created_at": "p.created_at",
		"updated_at": "p.updated_at",
	}
	return orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "p.created_at", "DESC") + ", p.id DESC"
}

// List returns a page of projects newest first.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, int, error) {
	w := projectWhere(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize, projectPageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", projectListSelect, w, projectOrder(filter), limit, offset)
	var items []models.ProjectListItem
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM projects p"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return items, total, nil
}

// ListAll returns every matching project, used by exports and detail pages.
func (r *ProjectRepository) ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error) {
	w := projectWhere(filter)
	var items []models.ProjectListItem
	if err := r.db.SelectContext(ctx, &items, projectListSelect+w.String()+" ORDER BY "+projectOrder(filter), w.args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return items, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*models.ProjectListItem, error) {
	var item models.ProjectListItem
	if err := r.db.GetContext(ctx, &item, projectListSelect+" WHERE p.id = $1", id); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetForUpdate loads the bare row and locks it until the surrounding transaction ends.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error) {
	var project models.Project
	query := "SELECT " + projectColumns + " FROM projects p WHERE p.id = $1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, r.exec(exec), &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = project.CreatedAt
	}
	const query = `INSERT INTO projects (title, description, course_id, student_id, status, priority, score, repository_url,
deployed_url, created_at, updated_at, deadline, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &project.ID, query,
		project.Title, project.Description, project.CourseID, project.StudentID, project.Status, project.Priority, project.Score,
		project.RepositoryURL, project.DeployedURL, project.CreatedAt, project.UpdatedAt, project.Deadline, project.CompletedAt); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) Update(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error {
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE projects SET title = $2, description = $3, course_id = $4, student_id = $5, status = $6, priority = $7,
score = $8, repository_url = $9, deployed_url = $10, updated_at = $11, deadline = $12, completed_at = $13 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, project.ID,
		project.Title, project.Description, project.CourseID, project.StudentID, project.Status, project.Priority,
		project.Score, project.RepositoryURL, project.DeployedURL, project.UpdatedAt, project.Deadline, project.CompletedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the project; tasks and status logs cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res)
}
