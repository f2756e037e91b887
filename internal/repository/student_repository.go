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

const studentPageSize = 20

const studentSummarySelect = `SELECT s.id, s.account_id, s.student_id, s.group_label, s.enrolled_at,
a.username, a.full_name, a.email,
COUNT(p.id) AS project_count,
COUNT(p.id) FILTER (WHERE p.status = 'completed') AS completed_count
FROM students s
JOIN accounts a ON a.id = s.account_id
LEFT JOIN projects p ON p.student_id = s.id`

const studentGroupBy = ` GROUP BY s.id, a.id`

// StudentRepository manages persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	return orDefault(exec, r.db)
}

// List returns students ordered by username with project counts.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error) {
	w := &where{}
	if filter.Search != "" {
		w.add("(LOWER(a.username) LIKE $%d OR LOWER(s.student_id) LIKE $%d OR LOWER(s.group_label) LIKE $%d)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize, studentPageSize)

	query := fmt.Sprintf("%s%s%s ORDER BY a.username ASC LIMIT %d OFFSET %d", studentSummarySelect, w, studentGroupBy, limit, offset)
	var students []models.StudentSummary
	if err := r.db.SelectContext(ctx, &students, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students s JOIN accounts a ON a.id = s.account_id%s", w)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.StudentSummary, error) {
	var student models.StudentSummary
	query := studentSummarySelect + " WHERE s.id = $1" + studentGroupBy
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) FindByAccountID(ctx context.Context, accountID int64) (*models.Student, error) {
	var student models.Student
	const query = `SELECT id, account_id, student_id, group_label, enrolled_at FROM students WHERE account_id = $1`
	if err := r.db.GetContext(ctx, &student, query, accountID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsForAccount reports whether the account already owns a profile.
func (r *StudentRepository) ExistsForAccount(ctx context.Context, exec sqlx.ExtContext, accountID int64) (bool, error) {
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, `SELECT 1 FROM students WHERE account_id = $1 LIMIT 1`, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student profile: %w", err)
	}
	return true, nil
}

// CreateForAccount inserts a profile unless one exists; the UNIQUE(account_id)
// constraint settles concurrent inserts. It reports whether a row was written.
func (r *StudentRepository) CreateForAccount(ctx context.Context, exec sqlx.ExtContext, student *models.Student) (bool, error) {
	if student.EnrolledAt.IsZero() {
		student.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (account_id, student_id, group_label, enrolled_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (account_id) DO NOTHING RETURNING id`
	err := sqlx.GetContext(ctx, r.exec(exec), &student.ID, query, student.AccountID, student.StudentID, student.GroupLabel, student.EnrolledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create student profile: %w", err)
	}
	return true, nil
}

// UpdateGroup changes the group label; student_id is never rewritten.
func (r *StudentRepository) UpdateGroup(ctx context.Context, id int64, group string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET group_label = $2 WHERE id = $1`, id, group)
	if err != nil {
		return fmt.Errorf("update student group: %w", err)
	}
	return requireAffected(res)
}

// Scores returns every project score of the student, nulls included.
func (r *StudentRepository) Scores(ctx context.Context, id int64) ([]*int, error) {
	var raw []sql.NullInt64
	if err := r.db.SelectContext(ctx, &raw, `SELECT score FROM projects WHERE student_id = $1`, id); err != nil {
		return nil, fmt.Errorf("list student scores: %w", err)
	}
	scores := make([]*int, len(raw))
	for i, v := range raw {
		if v.Valid {
			score := int(v.Int64)
			scores[i] = &score
		}
	}
	return scores, nil
}

// DeleteAll removes every student profile and returns how many went.
func (r *StudentRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM students`)
	if err != nil {
		return 0, fmt.Errorf("delete student profiles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted student profiles: %w", err)
	}
	return n, nil
}

// requireAffected maps a zero-row write to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
