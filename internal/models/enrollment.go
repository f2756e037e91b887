package models

import "time"

// Enrollment links a student to a course. The pair is unique.
type Enrollment struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	CourseID   int64     `db:"course_id" json:"course_id"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	StudentID *int64
	CourseID  *int64
	Page      int
	PageSize  int
}

// EnrollmentDetail joins an enrollment with the names it references.
type EnrollmentDetail struct {
	Enrollment
	StudentCode     string `db:"student_code" json:"student_code"`
	StudentUsername string `db:"student_username" json:"student_username"`
	CourseName      string `db:"course_name" json:"course_name"`
	CourseCode      string `db:"course_code" json:"course_code"`
}
