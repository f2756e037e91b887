package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/jobs"
)

type memoryCacheRepo struct {
	items   map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

type dashboardRepoStub struct {
	calls     int
	countsErr error
	today     time.Time
}

func (d *dashboardRepoStub) Counts(ctx context.Context, today time.Time) (*models.DashboardCounts, error) {
	d.calls++
	d.today = today
	if d.countsErr != nil {
		return nil, d.countsErr
	}
	return &models.DashboardCounts{TotalProjects: 4, CompletedProjects: 1, InProgressProjects: 2, OverdueProjects: 1}, nil
}

func (d *dashboardRepoStub) CourseStats(ctx context.Context, limit int) ([]models.CourseScoreStat, error) {
	return []models.CourseScoreStat{{CourseID: 1, Name: "Algorithms", ProjectCount: 4}}, nil
}

func (d *dashboardRepoStub) RecentProjects(ctx context.Context, limit int) ([]models.ProjectListItem, error) {
	deadline := date(2024, 3, 1)
	return []models.ProjectListItem{{Project: models.Project{ID: 1, Status: models.ProjectStatusDraft, Deadline: &deadline}, TaskCount: 4, CompletedTasks: 1}}, nil
}

func (d *dashboardRepoStub) TopStudents(ctx context.Context, limit int) ([]models.StudentScoreStat, error) {
	return nil, nil
}

func newDashboardServiceForTest(repo *dashboardRepoStub, cacheRepo *memoryCacheRepo, enabled bool) *DashboardService {
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, nil, enabled)
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Cache: cache, Config: DashboardServiceConfig{Location: time.UTC}})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestDashboardServiceComposesAndCaches(t *testing.T) {
	repo := &dashboardRepoStub{}
	cacheRepo := newMemoryCacheRepo()
	svc := newDashboardServiceForTest(repo, cacheRepo, true)

	dashboard, hit, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, dashboard.TotalProjects)
	assert.Equal(t, 1, dashboard.OverdueProjects)
	require.Len(t, dashboard.RecentProjects, 1)
	assert.Equal(t, 25, dashboard.RecentProjects[0].Progress)
	assert.True(t, dashboard.RecentProjects[0].Overdue)
	assert.NotNil(t, dashboard.TopStudents)
	assert.Equal(t, date(2024, 3, 15), repo.today)
	assert.Contains(t, cacheRepo.items, "edu:dashboard:2024-03-15")

	cached, hit, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, dashboard.TotalProjects, cached.TotalProjects)
}

func TestDashboardServiceWithoutCache(t *testing.T) {
	repo := &dashboardRepoStub{}
	svc := newDashboardServiceForTest(repo, newMemoryCacheRepo(), false)

	_, _, err := svc.Get(context.Background())
	require.NoError(t, err)
	_, hit, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardServiceCacheFailureFallsBackToStore(t *testing.T) {
	repo := &dashboardRepoStub{}
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.getErr = errors.New("redis down")
	svc := newDashboardServiceForTest(repo, cacheRepo, true)

	dashboard, hit, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, dashboard.TotalProjects)
}

func TestDashboardServicePropagatesStoreErrors(t *testing.T) {
	repo := &dashboardRepoStub{countsErr: errors.New("boom")}
	svc := newDashboardServiceForTest(repo, newMemoryCacheRepo(), true)

	_, _, err := svc.Get(context.Background())
	assertAppError(t, err, appErrors.ErrInternal.Code)
}

func TestCacheInvalidatorInlineAndQueued(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.items["edu:dashboard:2024-03-15"] = []byte(`{}`)
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	invalidator := NewCacheInvalidator(cache, nil)

	invalidator.DashboardChanged(context.Background())
	assert.Empty(t, cacheRepo.items)
	assert.Equal(t, []string{DashboardCachePattern}, cacheRepo.deleted)

	queue := &enqueuerStub{}
	invalidator.UseQueue(queue)
	invalidator.DashboardChanged(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeCacheInvalidate, queue.jobs[0].Type)
	require.NoError(t, invalidator.Handle(context.Background(), queue.jobs[0]))
	assert.Len(t, cacheRepo.deleted, 2)
}

type enqueuerStub struct {
	jobs []jobs.Job
}

func (e *enqueuerStub) TryEnqueue(job jobs.Job) error {
	e.jobs = append(e.jobs, job)
	return nil
}
