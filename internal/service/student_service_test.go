package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type studentRepoStub struct {
	students map[int64]*models.StudentSummary
	scores   map[int64][]*int
}

func (r *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error) {
	var out []models.StudentSummary
	for _, s := range r.students {
		if filter.Search != "" && !strings.Contains(s.Username, filter.Search) {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (r *studentRepoStub) FindByID(ctx context.Context, id int64) (*models.StudentSummary, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (r *studentRepoStub) UpdateGroup(ctx context.Context, id int64, group string) error {
	s, ok := r.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.GroupLabel = group
	return nil
}

func (r *studentRepoStub) Scores(ctx context.Context, id int64) ([]*int, error) {
	return r.scores[id], nil
}

func intPtr(v int) *int { return &v }

func newStudentServiceForTest(repo *studentRepoStub) *StudentService {
	svc := NewStudentService(repo, newProjectRepoStub(), &enrollmentCatalogStub{}, nil, nil, time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestStudentServiceGetAveragesScoredProjects(t *testing.T) {
	repo := &studentRepoStub{
		students: map[int64]*models.StudentSummary{1: {Student: models.Student{ID: 1, StudentID: "STU00001"}, Username: "amy"}},
		scores:   map[int64][]*int{1: {intPtr(80), nil, intPtr(90)}},
	}
	svc := newStudentServiceForTest(repo)

	detail, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, detail.AverageScore)
	assert.InDelta(t, 85.0, *detail.AverageScore, 0.001)
	assert.NotNil(t, detail.Projects)
	assert.NotNil(t, detail.Enrollments)
}

func TestStudentServiceGetWithoutScores(t *testing.T) {
	repo := &studentRepoStub{
		students: map[int64]*models.StudentSummary{1: {Student: models.Student{ID: 1}}},
		scores:   map[int64][]*int{1: {nil, nil}},
	}
	svc := newStudentServiceForTest(repo)

	detail, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, detail.AverageScore)
}

func TestStudentServiceUpdateGroupOnly(t *testing.T) {
	repo := &studentRepoStub{students: map[int64]*models.StudentSummary{1: {Student: models.Student{ID: 1, StudentID: "STU00001"}}}}
	svc := newStudentServiceForTest(repo)

	detail, err := svc.Update(context.Background(), 1, UpdateStudentRequest{Group: " B2 "})
	require.NoError(t, err)
	assert.Equal(t, "B2", detail.GroupLabel)
	assert.Equal(t, "STU00001", detail.StudentID)
}

func TestStudentServiceUpdateValidatesGroupLength(t *testing.T) {
	svc := newStudentServiceForTest(&studentRepoStub{students: map[int64]*models.StudentSummary{}})

	_, err := svc.Update(context.Background(), 1, UpdateStudentRequest{Group: strings.Repeat("x", 51)})
	appErr := assertAppError(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "group")
}

func TestStudentServiceMissing(t *testing.T) {
	svc := newStudentServiceForTest(&studentRepoStub{students: map[int64]*models.StudentSummary{}})

	_, err := svc.Get(context.Background(), 7)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
	_, err = svc.Update(context.Background(), 7, UpdateStudentRequest{Group: "A"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestStudentServiceListPagination(t *testing.T) {
	repo := &studentRepoStub{students: map[int64]*models.StudentSummary{
		1: {Username: "amy"},
		2: {Username: "bob"},
	}}
	svc := newStudentServiceForTest(repo)

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{Search: "bo", Page: 2})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}
