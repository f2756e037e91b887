package models

import "time"

// CourseStatus is the calendar position of a course relative to today.
type CourseStatus string

const (
	CourseStatusUpcoming  CourseStatus = "upcoming"
	CourseStatusActive    CourseStatus = "active"
	CourseStatusCompleted CourseStatus = "completed"
)

// Course groups enrollments and projects over a date range.
type Course struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DurationDays is end minus start in days; inconsistent dates go negative.
func (c *Course) DurationDays() int {
	return DaysBetween(c.StartDate, c.EndDate)
}

// StatusOn classifies the course for the given day. Both boundary days are active.
func (c *Course) StatusOn(today time.Time) CourseStatus {
	switch {
	case DaysBetween(c.StartDate, today) < 0:
		return CourseStatusUpcoming
	case DaysBetween(c.EndDate, today) > 0:
		return CourseStatusCompleted
	default:
		return CourseStatusActive
	}
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CourseSummary is a course annotated with counts and derived fields.
type CourseSummary struct {
	Course
	ProjectCount int          `db:"project_count" json:"project_count"`
	StudentCount int          `db:"student_count" json:"student_count"`
	Duration     int          `db:"-" json:"duration_days"`
	Status       CourseStatus `db:"-" json:"status"`
}

// Annotate fills the derived fields for the given day.
func (s *CourseSummary) Annotate(today time.Time) {
	s.Duration = s.DurationDays()
	s.Status = s.StatusOn(today)
}

// CourseStats aggregates project outcomes for one course.
type CourseStats struct {
	TotalProjects      int     `db:"total_projects" json:"total_projects"`
	CompletedProjects  int     `db:"completed_projects" json:"completed_projects"`
	InProgressProjects int     `db:"in_progress_projects" json:"in_progress_projects"`
	AverageScore       float64 `db:"average_score" json:"average_score"`
}

// CourseDetail is the course page payload.
type CourseDetail struct {
	CourseSummary
	Stats       CourseStats        `json:"stats"`
	Projects    []ProjectListItem  `json:"projects"`
	Enrollments []EnrollmentDetail `json:"enrollments"`
}
