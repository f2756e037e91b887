package models

import (
	"fmt"
	"time"
)

// Student is the learner profile attached to an account.
type Student struct {
	ID         int64     `db:"id" json:"id"`
	AccountID  int64     `db:"account_id" json:"account_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	GroupLabel string    `db:"group_label" json:"group"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// StudentIDForAccount derives the immutable student number for an account.
func StudentIDForAccount(accountID int64) string {
	return fmt.Sprintf("STU%05d", accountID)
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// StudentSummary is a student joined with its account and project counts.
type StudentSummary struct {
	Student
	Username       string `db:"username" json:"username"`
	FullName       string `db:"full_name" json:"full_name"`
	Email          string `db:"email" json:"email"`
	ProjectCount   int    `db:"project_count" json:"project_count"`
	CompletedCount int    `db:"completed_count" json:"completed_count"`
}

// StudentDetail is the student page payload.
type StudentDetail struct {
	StudentSummary
	AverageScore *float64           `json:"average_score"`
	Projects     []ProjectListItem  `json:"projects"`
	Enrollments  []EnrollmentDetail `json:"enrollments"`
}
