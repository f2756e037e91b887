package models

import "time"

// Dashboard summarises the whole tracker for the home page.
type Dashboard struct {
	TotalProjects      int                `json:"total_projects"`
	CompletedProjects  int                `json:"completed_projects"`
	InProgressProjects int                `json:"in_progress_projects"`
	OverdueProjects    int                `json:"overdue_projects"`
	CourseStats        []CourseScoreStat  `json:"course_stats"`
	RecentProjects     []ProjectListItem  `json:"recent_projects"`
	TopStudents        []StudentScoreStat `json:"top_students"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// DashboardCounts is the single-row aggregate behind the dashboard totals.
type DashboardCounts struct {
	TotalProjects      int `db:"total_projects"`
	CompletedProjects  int `db:"completed_projects"`
	InProgressProjects int `db:"in_progress_projects"`
	OverdueProjects    int `db:"overdue_projects"`
}

// CourseScoreStat is one row of the per-course dashboard table.
type CourseScoreStat struct {
	CourseID       int64    `db:"course_id" json:"course_id"`
	Name           string   `db:"name" json:"name"`
	Code           string   `db:"code" json:"code"`
	ProjectCount   int      `db:"project_count" json:"project_count"`
	CompletedCount int      `db:"completed_count" json:"completed_count"`
	AverageScore   *float64 `db:"avg_score" json:"avg_score"`
}

// StudentScoreStat ranks students by their average project score.
type StudentScoreStat struct {
	StudentID    int64   `db:"id" json:"id"`
	StudentCode  string  `db:"student_code" json:"student_id"`
	Username     string  `db:"username" json:"username"`
	AverageScore float64 `db:"avg_score" json:"avg_score"`
	ProjectCount int     `db:"project_count" json:"project_count"`
}
