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

const enrollmentPageSize = 20

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.is_active, e.enrolled_at,
s.student_id AS student_code, a.username AS student_username, c.name AS course_name, c.code AS course_code
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN accounts a ON a.id = s.account_id
JOIN courses c ON c.id = e.course_id`

// EnrollmentRepository manages student-course links.
type EnrollmentRepository struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func enrollmentWhere(filter models.EnrollmentFilter) *where {
	w := &where{}
	if filter.StudentID != nil {
		w.add("e.student_id = $%d", *filter.StudentID)
	}
	if filter.CourseID != nil {
		w.add("e.course_id = $%d", *filter.CourseID)
	}
	return w
}

// List returns enrollments newest first.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	w := enrollmentWhere(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize, enrollmentPageSize)

	query := fmt.Sprintf("%s%s ORDER BY e.enrolled_at DESC, e.id DESC LIMIT %d OFFSET %d", enrollmentDetailSelect, w, limit, offset)
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments e"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// ListAll returns every enrollment matching the filter without paging.
func (r *EnrollmentRepository) ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	w := enrollmentWhere(filter)
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, enrollmentDetailSelect+w.String()+" ORDER BY e.enrolled_at DESC, e.id DESC", w.args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return items, nil
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	var item models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &item, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Exists reports whether the student is already enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`, studentID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (student_id, course_id, is_active, enrolled_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &enrollment.ID, query, enrollment.StudentID, enrollment.CourseID, enrollment.IsActive, enrollment.EnrolledAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrollments SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return requireAffected(res)
}

func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(res)
}
