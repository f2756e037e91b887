package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

// DashboardRepository runs the aggregate queries behind the home page.
type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) Counts(ctx context.Context, today time.Time) (*models.DashboardCounts, error) {
	const query = `SELECT COUNT(*) AS total_projects,
COUNT(*) FILTER (WHERE status = 'completed') AS completed_projects,
COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress_projects,
COUNT(*) FILTER (WHERE deadline < $1 AND status IN ('draft', 'in_progress', 'review')) AS overdue_projects
FROM projects`
	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, today); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// CourseStats returns active courses by latest start date with project aggregates.
func (r *DashboardRepository) CourseStats(ctx context.Context, limit int) ([]models.CourseScoreStat, error) {
	const query = `SELECT c.id AS course_id, c.name, c.code,
COUNT(p.id) AS project_count,
COUNT(p.id) FILTER (WHERE p.status = 'completed') AS completed_count,
AVG(p.score)::float8 AS avg_score
FROM courses c LEFT JOIN projects p ON p.course_id = c.id
WHERE c.is_active = TRUE
GROUP BY c.id ORDER BY c.start_date DESC, c.id DESC LIMIT $1`
	var stats []models.CourseScoreStat
	if err := r.db.SelectContext(ctx, &stats, query, limit); err != nil {
		return nil, fmt.Errorf("dashboard course stats: %w", err)
	}
	return stats, nil
}

func (r *DashboardRepository) RecentProjects(ctx context.Context, limit int) ([]models.ProjectListItem, error) {
	var items []models.ProjectListItem
	if err := r.db.SelectContext(ctx, &items, projectListSelect+" ORDER BY p.created_at DESC, p.id DESC LIMIT $1", limit); err != nil {
		return nil, fmt.Errorf("dashboard recent projects: %w", err)
	}
	return items, nil
}

// TopStudents ranks students with at least one scored project.
func (r *DashboardRepository) TopStudents(ctx context.Context, limit int) ([]models.StudentScoreStat, error) {
	const query = `SELECT s.id, s.student_id AS student_code, a.username,
AVG(p.score)::float8 AS avg_score, COUNT(p.id) AS project_count
FROM students s
JOIN accounts a ON a.id = s.account_id
JOIN projects p ON p.student_id = s.id
WHERE p.score IS NOT NULL
GROUP BY s.id, a.username ORDER BY avg_score DESC, s.id LIMIT $1`
	var students []models.StudentScoreStat
	if err := r.db.SelectContext(ctx, &students, query, limit); err != nil {
		return nil, fmt.Errorf("dashboard top students: %w", err)
	}
	return students, nil
}
