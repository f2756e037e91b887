package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

const coursePageSize = 10

const courseSummarySelect = `SELECT c.id, c.name, c.code, c.description, c.start_date, c.end_date, c.is_active, c.created_at,
(SELECT COUNT(*) FROM projects p WHERE p.course_id = c.id) AS project_count,
(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS student_count
FROM courses c`

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses newest start date first, annotated with counts.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error) {
	w := &where{}
	if filter.ActiveOnly {
		w.raw("c.is_active = TRUE")
	}
	if filter.Search != "" {
		w.add("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", likePattern(filter.Search))
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"code":       "c.code",
		"start_date": "c.start_date",
		"end_date":   "c.end_date",
		"created_at": "c.created_at",
	}
	order := orderClause(filter.SortBy, filter.SortOrder, allowedSorts, "c.start_date", "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize, coursePageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s, c.id DESC LIMIT %d OFFSET %d", courseSummarySelect, w, order, limit, offset)
	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.CourseSummary, error) {
	var course models.CourseSummary
	if err := r.db.GetContext(ctx, &course, courseSummarySelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks code uniqueness optionally excluding one course.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1"
	args := []interface{}{code}
	if excludeID > 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (name, code, description, start_date, end_date, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &course.ID, query,
		course.Name, course.Code, course.Description, course.StartDate, course.EndDate, course.IsActive, course.CreatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	const query = `UPDATE courses SET name = :name, code = :code, description = :description, start_date = :start_date,
end_date = :end_date, is_active = :is_active WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the course; enrollments and projects cascade.
func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return requireAffected(res)
}

// Stats aggregates project outcomes; the average is 0 when nothing is scored.
func (r *CourseRepository) Stats(ctx context.Context, id int64) (*models.CourseStats, error) {
	const query = `SELECT COUNT(*) AS total_projects,
COUNT(*) FILTER (WHERE status = 'completed') AS completed_projects,
COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress_projects,
COALESCE(AVG(score), 0)::float8 AS average_score
FROM projects WHERE course_id = $1`
	var stats models.CourseStats
	if err := r.db.GetContext(ctx, &stats, query, id); err != nil {
		return nil, fmt.Errorf("course stats: %w", err)
	}
	return &stats, nil
}
