package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	"github.com/noah-isme/edu-project-tracker/pkg/cache"
)

const dashboardListLimit = 5

type dashboardRepository interface {
	Counts(ctx context.Context, today time.Time) (*models.DashboardCounts, error)
	CourseStats(ctx context.Context, limit int) ([]models.CourseScoreStat, error)
	RecentProjects(ctx context.Context, limit int) ([]models.ProjectListItem, error)
	TopStudents(ctx context.Context, limit int) ([]models.StudentScoreStat, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo   dashboardRepository
	Cache  *CacheService
	Logger *zap.Logger
	Config DashboardServiceConfig
}

// DashboardService composes the home page payload.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DashboardService{repo: params.Repo, cache: params.Cache, logger: logger, now: time.Now, cfg: cfg}
}

// Get returns the dashboard and whether it came from cache. Overdue figures
// depend on the day, so the cache key carries the date.
func (s *DashboardService) Get(ctx context.Context) (*models.Dashboard, bool, error) {
	today := models.Today(s.now(), s.cfg.Location)
	key := cache.Key("dashboard", today.Format(models.DateLayout))

	var cached models.Dashboard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	dashboard, err := s.compose(ctx, today)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, dashboard, s.cfg.CacheTTL)
	return dashboard, false, nil
}

func (s *DashboardService) compose(ctx context.Context, today time.Time) (*models.Dashboard, error) {
	counts, err := s.repo.Counts(ctx, today)
	if err != nil {
		return nil, internalError(err, "failed to load dashboard totals")
	}
	courses, err := s.repo.CourseStats(ctx, dashboardListLimit)
	if err != nil {
		return nil, internalError(err, "failed to load course statistics")
	}
	recent, err := s.repo.RecentProjects(ctx, dashboardListLimit)
	if err != nil {
		return nil, internalError(err, "failed to load recent projects")
	}
	for i := range recent {
		recent[i].Annotate(today)
	}
	students, err := s.repo.TopStudents(ctx, dashboardListLimit)
	if err != nil {
		return nil, internalError(err, "failed to load top students")
	}

	if courses == nil {
		courses = []models.CourseScoreStat{}
	}
	if recent == nil {
		recent = []models.ProjectListItem{}
	}
	if students == nil {
		students = []models.StudentScoreStat{}
	}
	return &models.Dashboard{
		TotalProjects:      counts.TotalProjects,
		CompletedProjects:  counts.CompletedProjects,
		InProgressProjects: counts.InProgressProjects,
		OverdueProjects:    counts.OverdueProjects,
		CourseStats:        courses,
		RecentProjects:     recent,
		TopStudents:        students,
		GeneratedAt:        s.now().UTC(),
	}, nil
}
