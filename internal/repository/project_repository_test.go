package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var projectListColumns = []string{"id", "title", "description", "course_id", "student_id", "status", "priority", "score",
	"repository_url", "deployed_url", "created_at", "updated_at", "deadline", "completed_at",
	"course_name", "course_code", "student_code", "student_username", "task_count", "completed_task_count"}

func TestProjectRepositoryListComposesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	courseID := int64(3)
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	filter := models.ProjectFilter{
		Status:   models.ProjectStatusInProgress,
		CourseID: &courseID,
		Search:   "Api",
		Overdue:  true,
		Today:    today,
		Page:     2,
	}

	now := time.Now()
	rows := sqlmock.NewRows(projectListColumns).
		AddRow(1, "API", "", 3, 4, "in_progress", "high", nil, "", "", now, now, today.AddDate(0, 0, -1), nil, "Go", "GO101", "STU00004", "amy", 3, 2)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.status = $1 AND p.course_id = $2 AND LOWER(p.title) LIKE $3 AND p.deadline < $4 AND p.status IN ($5, $6, $7) ORDER BY p.created_at DESC, p.id DESC LIMIT 15 OFFSET 15")).
		WithArgs(models.ProjectStatusInProgress, courseID, "%api%", today, models.ProjectStatusDraft, models.ProjectStatusInProgress, models.ProjectStatusReview).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM projects p WHERE p.status = $1")).
		WithArgs(models.ProjectStatusInProgress, courseID, "%api%", today, models.ProjectStatusDraft, models.ProjectStatusInProgress, models.ProjectStatusReview).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(16))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 16, total)
	assert.Equal(t, "STU00004", items[0].StudentCode)
	assert.Equal(t, 2, items[0].CompletedTasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryListWithoutFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(") t ON t.project_id = p.id ORDER BY p.created_at DESC, p.id DESC LIMIT 15 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(projectListColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM projects p")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.ProjectFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryGetForUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects p WHERE p.id = $1 FOR UPDATE")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.GetForUpdate(context.Background(), tx, 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery("INSERT INTO projects").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	project := &models.Project{Title: "Compiler", CourseID: 1, StudentID: 2, Status: models.ProjectStatusDraft, Priority: models.ProjectPriorityMedium}
	require.NoError(t, repo.Create(context.Background(), nil, project))
	assert.Equal(t, int64(42), project.ID)
	assert.False(t, project.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryKeepsCallerTimestamps(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	created := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs("Compiler", "", int64(1), int64(2), models.ProjectStatusDraft, models.ProjectPriorityMedium, nil,
			"", "", created, created, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("UPDATE projects SET").
		WithArgs(int64(42), "Compiler", "", int64(1), int64(2), models.ProjectStatusDraft, models.ProjectPriorityMedium, nil,
			"", "", updated, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	project := &models.Project{Title: "Compiler", CourseID: 1, StudentID: 2, Status: models.ProjectStatusDraft,
		Priority: models.ProjectPriorityMedium, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, repo.Create(context.Background(), nil, project))
	assert.Equal(t, created, project.CreatedAt)

	project.UpdatedAt = updated
	require.NoError(t, repo.Update(context.Background(), nil, project))
	assert.Equal(t, updated, project.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 5), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
