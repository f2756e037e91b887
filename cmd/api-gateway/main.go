package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-project-tracker/api/swagger"
	"github.com/noah-isme/edu-project-tracker/internal/handler"
	"github.com/noah-isme/edu-project-tracker/internal/middleware"
	"github.com/noah-isme/edu-project-tracker/internal/repository"
	"github.com/noah-isme/edu-project-tracker/internal/router"
	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/migrations"
	"github.com/noah-isme/edu-project-tracker/pkg/cache"
	"github.com/noah-isme/edu-project-tracker/pkg/config"
	"github.com/noah-isme/edu-project-tracker/pkg/database"
	"github.com/noah-isme/edu-project-tracker/pkg/jobs"
	"github.com/noah-isme/edu-project-tracker/pkg/logger"
)

// @title Edu Project Tracker API
// @version 1.0.0
// @description Courses, students, enrollments and project workflow tracking
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(ctx, db.DB, "up"); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	metrics := service.NewMetricsService()

	var (
		cacheStore   service.CacheRepository
		loginCounter middleware.Counter
	)
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	switch {
	case err == nil:
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
		cacheStore = cacheRepo
		loginCounter = cacheRepo
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled; dashboard cache and login rate limit are off")
	default:
		logr.Warn("redis unavailable; continuing without cache", zap.Error(err))
	}

	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	invalidator := service.NewCacheInvalidator(cacheSvc, logr)
	queue := jobs.NewQueue("cache-invalidation", invalidator.Handle, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	invalidator.UseQueue(queue)

	loc := cfg.Location()

	accounts := repository.NewAccountRepository(db)
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	projects := repository.NewProjectRepository(db)
	tasks := repository.NewTaskRepository(db)
	statusLogs := repository.NewStatusLogRepository(db)
	dashboards := repository.NewDashboardRepository(db)

	provisioning := service.NewProvisioningService(db, students, accounts, metrics, logr)
	authSvc := service.NewAuthService(db, accounts, provisioning, students, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	projectSvc := service.NewProjectService(db, projects, tasks, statusLogs, invalidator, metrics, nil, logr, loc)
	taskSvc := service.NewTaskService(db, tasks, projects, invalidator, nil, logr)
	courseSvc := service.NewCourseService(courses, projects, enrollments, invalidator, nil, logr, loc)
	studentSvc := service.NewStudentService(students, projects, enrollments, nil, logr, loc)
	enrollmentSvc := service.NewEnrollmentService(enrollments, invalidator, nil, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:   dashboards,
		Cache:  cacheSvc,
		Logger: logr,
		Config: service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL, Location: loc},
	})
	exportSvc := service.NewExportService(projectSvc, metrics, logr, nil, nil, nil)

	engine := router.New(router.Config{
		APIPrefix:       cfg.APIPrefix,
		LoginPath:       cfg.Auth.LoginPath,
		CookieName:      cfg.Auth.CookieName,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		EnableDocs:      cfg.Env != config.EnvProduction,
		LoginRateLimit:  cfg.Auth.LoginRateLimit,
		LoginRateWindow: cfg.Auth.LoginRateWindow,
	}, router.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.AuthHandlerConfig{
			CookieName:   cfg.Auth.CookieName,
			CookieSecure: cfg.Auth.CookieSecure,
			APILoginPath: cfg.APIPrefix + "/auth/login",
		}),
		Course:      handler.NewCourseHandler(courseSvc),
		Student:     handler.NewStudentHandler(studentSvc),
		Enrollment:  handler.NewEnrollmentHandler(enrollmentSvc),
		Project:     handler.NewProjectHandler(projectSvc, exportSvc),
		Task:        handler.NewTaskHandler(taskSvc, cfg.APIPrefix),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Admin:       handler.NewAdminHandler(provisioning),
		Observation: handler.NewMetricsHandler(metrics, db),
	}, router.Deps{
		Tokens:       authSvc,
		Metrics:      metrics,
		LoginCounter: loginCounter,
		Logger:       logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
