package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type notifierStub struct {
	calls int
}

func (n *notifierStub) DashboardChanged(ctx context.Context) {
	n.calls++
}

type projectRepoStub struct {
	projects  map[int64]*models.Project
	items     []models.ProjectListItem
	filter    models.ProjectFilter
	updated   []models.Project
	created   *models.Project
	updateErr error
	nextID    int64
}

func newProjectRepoStub(projects ...models.Project) *projectRepoStub {
	repo := &projectRepoStub{projects: map[int64]*models.Project{}, nextID: 100}
	for i := range projects {
		p := projects[i]
		repo.projects[p.ID] = &p
	}
	return repo
}

func (r *projectRepoStub) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, int, error) {
	r.filter = filter
	return r.items, len(r.items), nil
}

func (r *projectRepoStub) ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error) {
	r.filter = filter
	return r.items, nil
}

func (r *projectRepoStub) FindByID(ctx context.Context, id int64) (*models.ProjectListItem, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ProjectListItem{Project: *p, CourseCode: "CS101", StudentCode: "STU00001", TaskCount: 3, CompletedTasks: 1}, nil
}

func (r *projectRepoStub) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (r *projectRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error {
	project.ID = r.nextID
	r.nextID++
	stored := *project
	r.projects[project.ID] = &stored
	r.created = &stored
	return nil
}

func (r *projectRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, project *models.Project) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored := *project
	r.projects[project.ID] = &stored
	r.updated = append(r.updated, stored)
	return nil
}

func (r *projectRepoStub) Delete(ctx context.Context, id int64) error {
	if _, ok := r.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.projects, id)
	return nil
}

type taskListerStub struct {
	tasks []models.Task
}

func (s taskListerStub) ListByProject(ctx context.Context, projectID int64) ([]models.Task, error) {
	return s.tasks, nil
}

type statusLogStub struct {
	entries []models.StatusLogEntry
	err     error
}

func (s *statusLogStub) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.StatusLogEntry) error {
	if s.err != nil {
		return s.err
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *statusLogStub) ListRecent(ctx context.Context, projectID int64, limit int) ([]models.StatusLogEntry, error) {
	return s.entries, nil
}

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newProjectServiceForTest(t *testing.T, repo *projectRepoStub) (*ProjectService, *statusLogStub, *notifierStub, sqlmock.Sqlmock) {
	db, mock := newTxProviderMock(t)
	logs := &statusLogStub{}
	notifier := &notifierStub{}
	svc := NewProjectService(db, repo, taskListerStub{}, logs, notifier, NewMetricsService(), nil, nil, time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc, logs, notifier, mock
}

func assertAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestProjectServiceTransitionAppliesAndLogs(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Title: "Portfolio", Status: models.ProjectStatusReview})
	svc, logs, notifier, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	actor := int64(42)
	project, err := svc.Transition(context.Background(), 1, models.ProjectStatusCompleted, &actor, "looks good")
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusCompleted, project.Status)
	require.NotNil(t, project.Score)
	assert.Equal(t, 0, *project.Score)
	require.NotNil(t, project.CompletedAt)
	assert.Equal(t, fixedNow, *project.CompletedAt)

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, models.ProjectStatusReview, entry.OldStatus)
	assert.Equal(t, models.ProjectStatusCompleted, entry.NewStatus)
	assert.Equal(t, "looks good", entry.Comment)
	assert.Equal(t, &actor, entry.ChangedBy)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.transitions.WithLabelValues("review", "completed", TransitionApplied)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceTransitionKeepsExistingScore(t *testing.T) {
	score := 88
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusReview, Score: &score})
	svc, _, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	project, err := svc.Transition(context.Background(), 1, models.ProjectStatusCompleted, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 88, *project.Score)
}

func TestProjectServiceTransitionClearsCompletionWhenReopened(t *testing.T) {
	done := fixedNow.Add(-48 * time.Hour)
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusCompleted, CompletedAt: &done})
	svc, logs, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	project, err := svc.Transition(context.Background(), 1, models.ProjectStatusInProgress, nil, "")
	require.NoError(t, err)
	assert.Nil(t, project.CompletedAt)
	assert.Equal(t, models.ProjectStatusCompleted, logs.entries[0].OldStatus)
}

func TestProjectServiceTransitionRejectsDisallowedEdge(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusDraft})
	svc, logs, notifier, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), 1, models.ProjectStatusCompleted, nil, "")
	appErr := assertAppError(t, err, appErrors.ErrInvalidTransition.Code)
	assert.Contains(t, appErr.Details, "new_status")

	assert.Empty(t, repo.updated)
	assert.Empty(t, logs.entries)
	assert.Zero(t, notifier.calls)
	assert.Equal(t, models.ProjectStatusDraft, repo.projects[1].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.transitions.WithLabelValues("draft", "completed", TransitionRejected)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceTransitionRejectsUnknownStatus(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusDraft})
	svc, _, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), 1, models.ProjectStatus("shipped"), nil, "")
	assertAppError(t, err, appErrors.ErrInvalidTransition.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.transitions.WithLabelValues("draft", "invalid", TransitionRejected)))
}

func TestProjectServiceTransitionUnknownStatusesShareOneSeries(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusDraft})
	svc, _, _, mock := newProjectServiceForTest(t, repo)

	for i := 0; i < 50; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := svc.Transition(context.Background(), 1, models.ProjectStatus(fmt.Sprintf("bogus-%d", i)), nil, "")
		assertAppError(t, err, appErrors.ErrInvalidTransition.Code)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(svc.metrics.transitions))
	assert.Equal(t, 50.0, testutil.ToFloat64(svc.metrics.transitions.WithLabelValues("draft", "invalid", TransitionRejected)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceTransitionMissingProject(t *testing.T) {
	svc, logs, _, mock := newProjectServiceForTest(t, newProjectRepoStub())
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), 9, models.ProjectStatusInProgress, nil, "")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
	assert.Empty(t, logs.entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceTransitionRollsBackWhenLogFails(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusDraft})
	svc, logs, notifier, mock := newProjectServiceForTest(t, repo)
	logs.err = errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), 1, models.ProjectStatusInProgress, nil, "")
	assertAppError(t, err, appErrors.ErrInternal.Code)
	assert.Zero(t, notifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceCreateWritesInitialLog(t *testing.T) {
	repo := newProjectRepoStub()
	svc, logs, notifier, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	actor := int64(3)
	detail, err := svc.Create(context.Background(), ProjectRequest{
		Title:     "Compiler",
		CourseID:  1,
		StudentID: 2,
		Status:    models.ProjectStatusInProgress,
		Deadline:  "2024-04-01",
	}, &actor)
	require.NoError(t, err)

	assert.Equal(t, int64(100), detail.ID)
	assert.Equal(t, models.ProjectPriorityMedium, detail.Priority)
	require.NotNil(t, detail.Deadline)
	assert.Equal(t, 17, *detail.DaysUntilDeadline)
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusDraft, models.ProjectStatusReview, models.ProjectStatusArchived}, detail.AllowedTransitions)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ProjectStatusDraft, logs.entries[0].OldStatus)
	assert.Equal(t, models.ProjectStatusInProgress, logs.entries[0].NewStatus)
	assert.Equal(t, models.ProjectCreatedComment, logs.entries[0].Comment)
	assert.Equal(t, 1, notifier.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceCreateDefaultsToDraft(t *testing.T) {
	repo := newProjectRepoStub()
	svc, _, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	detail, err := svc.Create(context.Background(), ProjectRequest{Title: "Essay", CourseID: 1, StudentID: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusDraft, detail.Status)
	assert.Nil(t, detail.CompletedAt)
}

func TestProjectServiceCreateRejectsScoreOnOpenProject(t *testing.T) {
	svc, _, _, _ := newProjectServiceForTest(t, newProjectRepoStub())
	score := 90

	_, err := svc.Create(context.Background(), ProjectRequest{Title: "Essay", CourseID: 1, StudentID: 2, Score: &score}, nil)
	appErr := assertAppError(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, []string{"Score can only be set for completed or archived projects."}, appErr.Details["score"])
}

func TestProjectServiceCreateValidatesPayload(t *testing.T) {
	svc, _, _, _ := newProjectServiceForTest(t, newProjectRepoStub())
	score := 120

	_, err := svc.Create(context.Background(), ProjectRequest{Status: "done", Score: &score, RepositoryURL: "not a url"}, nil)
	appErr := assertAppError(t, err, appErrors.ErrValidation.Code)
	for _, field := range []string{"title", "course_id", "student_id", "status", "score", "repository_url"} {
		assert.Contains(t, appErr.Details, field)
	}
}

func TestProjectServiceUpdateRoutesStatusChangeThroughWorkflow(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Title: "Old", Status: models.ProjectStatusReview, Priority: models.ProjectPriorityLow})
	svc, logs, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	actor := int64(5)
	detail, err := svc.Update(context.Background(), 1, ProjectRequest{Title: "New", CourseID: 1, StudentID: 2, Status: models.ProjectStatusCompleted}, &actor)
	require.NoError(t, err)
	assert.Equal(t, "New", detail.Title)
	assert.Equal(t, models.ProjectPriorityLow, detail.Priority)
	assert.Equal(t, 0, *detail.Score)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ProjectStatusReview, logs.entries[0].OldStatus)
	assert.Equal(t, &actor, logs.entries[0].ChangedBy)
}

func TestProjectServiceUpdateWithoutStatusChangeSkipsLog(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusDraft})
	svc, logs, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Update(context.Background(), 1, ProjectRequest{Title: "Same", CourseID: 1, StudentID: 2}, nil)
	require.NoError(t, err)
	assert.Empty(t, logs.entries)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, models.ProjectStatusDraft, repo.updated[0].Status)
}

func TestProjectServiceUpdateRejectsDisallowedStatus(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1, Status: models.ProjectStatusArchived})
	svc, logs, _, mock := newProjectServiceForTest(t, repo)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Update(context.Background(), 1, ProjectRequest{Title: "x", CourseID: 1, StudentID: 2, Status: models.ProjectStatusCompleted}, nil)
	assertAppError(t, err, appErrors.ErrInvalidTransition.Code)
	assert.Empty(t, repo.updated)
	assert.Empty(t, logs.entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectServiceListAnnotatesItems(t *testing.T) {
	deadline := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newProjectRepoStub()
	repo.items = []models.ProjectListItem{{
		Project:        models.Project{ID: 1, Status: models.ProjectStatusInProgress, Deadline: &deadline},
		TaskCount:      3,
		CompletedTasks: 2,
	}}
	svc, _, _, _ := newProjectServiceForTest(t, repo)

	items, pagination, err := svc.List(context.Background(), models.ProjectFilter{Overdue: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 66, items[0].Progress)
	assert.True(t, items[0].Overdue)
	assert.Equal(t, -5, *items[0].DaysUntilDeadline)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), repo.filter.Today)
	assert.Equal(t, 15, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestProjectServiceGetMissing(t *testing.T) {
	svc, _, _, _ := newProjectServiceForTest(t, newProjectRepoStub())

	_, err := svc.Get(context.Background(), 4)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestProjectServiceDelete(t *testing.T) {
	repo := newProjectRepoStub(models.Project{ID: 1})
	svc, _, notifier, _ := newProjectServiceForTest(t, repo)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Equal(t, 1, notifier.calls)
	assertAppError(t, svc.Delete(context.Background(), 1), appErrors.ErrNotFound.Code)
}
