package models

import (
	"time"
)

// ProjectStatus is a state of the project workflow.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusReview     ProjectStatus = "review"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

// ProjectStatuses lists every workflow state in display order.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusDraft,
	ProjectStatusInProgress,
	ProjectStatusReview,
	ProjectStatusCompleted,
	ProjectStatusArchived,
}

// projectTransitions is the adjacency table of the workflow. The graph is
// cyclic: archived projects can be revived back to draft.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusDraft:      {ProjectStatusInProgress, ProjectStatusArchived},
	ProjectStatusInProgress: {ProjectStatusReview, ProjectStatusDraft, ProjectStatusArchived},
	ProjectStatusReview:     {ProjectStatusCompleted, ProjectStatusInProgress, ProjectStatusDraft},
	ProjectStatusCompleted:  {ProjectStatusInProgress, ProjectStatusArchived},
	ProjectStatusArchived:   {ProjectStatusDraft},
}

// Valid reports whether s is a known workflow state.
func (s ProjectStatus) Valid() bool {
	_, ok := projectTransitions[s]
	return ok
}

// CanTransitionTo reports whether the workflow allows moving from s to target.
func (s ProjectStatus) CanTransitionTo(target ProjectStatus) bool {
	for _, next := range projectTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal targets from s in display order.
func (s ProjectStatus) AllowedTransitions() []ProjectStatus {
	allowed := make([]ProjectStatus, 0, len(projectTransitions[s]))
	for _, candidate := range ProjectStatuses {
		if s.CanTransitionTo(candidate) {
			allowed = append(allowed, candidate)
		}
	}
	return allowed
}

// ProjectPriority ranks projects.
type ProjectPriority string

const (
	ProjectPriorityLow    ProjectPriority = "low"
	ProjectPriorityMedium ProjectPriority = "medium"
	ProjectPriorityHigh   ProjectPriority = "high"
)

// Valid reports whether p is a known priority.
func (p ProjectPriority) Valid() bool {
	switch p {
	case ProjectPriorityLow, ProjectPriorityMedium, ProjectPriorityHigh:
		return true
	}
	return false
}

// Project is a piece of coursework submitted by one student for one course.
type Project struct {
	ID            int64           `db:"id" json:"id"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	CourseID      int64           `db:"course_id" json:"course_id"`
	StudentID     int64           `db:"student_id" json:"student_id"`
	Status        ProjectStatus   `db:"status" json:"status"`
	Priority      ProjectPriority `db:"priority" json:"priority"`
	Score         *int            `db:"score" json:"score"`
	RepositoryURL string          `db:"repository_url" json:"repository_url"`
	DeployedURL   string          `db:"deployed_url" json:"deployed_url"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	Deadline      *time.Time      `db:"deadline" json:"deadline"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at"`
}

// CanTransitionTo is a pure membership test keyed by the current status.
func (p *Project) CanTransitionTo(target ProjectStatus) bool {
	return p.Status.CanTransitionTo(target)
}

// Normalize applies the save rules: completed projects carry a completion
// time, every other status has none.
func (p *Project) Normalize(now time.Time) {
	if p.Status == ProjectStatusCompleted {
		if p.CompletedAt == nil {
			ts := now
			p.CompletedAt = &ts
		}
		return
	}
	p.CompletedAt = nil
}

// IsOverdue reports whether the deadline has passed for an open project.
// A project due today is not overdue yet.
func (p *Project) IsOverdue(today time.Time) bool {
	if p.Deadline == nil {
		return false
	}
	if p.Status == ProjectStatusCompleted || p.Status == ProjectStatusArchived {
		return false
	}
	return DaysBetween(*p.Deadline, today) > 0
}

// DaysUntilDeadline returns deadline - today in days, nil without a deadline.
func (p *Project) DaysUntilDeadline(today time.Time) *int {
	if p.Deadline == nil {
		return nil
	}
	days := DaysBetween(today, *p.Deadline)
	return &days
}

// ProgressPercentage truncates 100*completed/total; zero tasks yield zero.
func ProgressPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return completed * 100 / total
}

// AverageScore averages the non-nil scores, nil when there are none.
func AverageScore(scores []*int) *float64 {
	var (
		sum   int
		count int
	)
	for _, score := range scores {
		if score == nil {
			continue
		}
		sum += *score
		count++
	}
	if count == 0 {
		return nil
	}
	avg := float64(sum) / float64(count)
	return &avg
}

// ProjectFilter captures list filters; every set field narrows the result.
type ProjectFilter struct {
	Status    ProjectStatus
	CourseID  *int64
	StudentID *int64
	Priority  ProjectPriority
	Search    string
	Overdue   bool
	Today     time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ProjectListItem is a project joined with its course, student and task counts.
type ProjectListItem struct {
	Project
	CourseName        string `db:"course_name" json:"course_name"`
	CourseCode        string `db:"course_code" json:"course_code"`
	StudentCode       string `db:"student_code" json:"student_code"`
	StudentUsername   string `db:"student_username" json:"student_username"`
	TaskCount         int    `db:"task_count" json:"task_count"`
	CompletedTasks    int    `db:"completed_task_count" json:"completed_task_count"`
	Progress          int    `db:"-" json:"progress_percentage"`
	Overdue           bool   `db:"-" json:"is_overdue"`
	DaysUntilDeadline *int   `db:"-" json:"days_until_deadline"`
}

// Annotate fills the derived fields for the given day.
func (i *ProjectListItem) Annotate(today time.Time) {
	i.Progress = ProgressPercentage(i.CompletedTasks, i.TaskCount)
	i.Overdue = i.IsOverdue(today)
	i.DaysUntilDeadline = i.Project.DaysUntilDeadline(today)
}

// ProjectDetail adds tasks, recent history and the legal next states.
type ProjectDetail struct {
	ProjectListItem
	Tasks              []Task           `json:"tasks"`
	StatusLogs         []StatusLogEntry `json:"status_logs"`
	AllowedTransitions []ProjectStatus  `json:"allowed_transitions"`
}
