// Package router assembles the HTTP surface: global middleware, public
// probes, the browser login redirect and the authenticated API group.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/handler"
	"github.com/noah-isme/edu-project-tracker/internal/middleware"
	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-project-tracker/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-project-tracker/pkg/middleware/requestid"
)

// Config carries the routing knobs read from configuration.
type Config struct {
	APIPrefix       string
	LoginPath       string
	CookieName      string
	AllowedOrigins  []string
	EnableDocs      bool
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	Course      *handler.CourseHandler
	Student     *handler.StudentHandler
	Enrollment  *handler.EnrollmentHandler
	Project     *handler.ProjectHandler
	Task        *handler.TaskHandler
	Dashboard   *handler.DashboardHandler
	Admin       *handler.AdminHandler
	Observation *handler.MetricsHandler
}

// Deps are the cross-cutting collaborators of the middleware chain.
type Deps struct {
	Tokens       middleware.TokenValidator
	Metrics      *service.MetricsService
	LoginCounter middleware.Counter
	Logger       *zap.Logger
}

// New builds the gin engine with every route registered.
func New(cfg Config, h Handlers, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Observation.Health)
	r.GET("/ready", h.Observation.Ready)
	r.GET("/metrics", h.Observation.Prometheus)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/", middleware.RequireLogin(deps.Tokens, cfg.CookieName, cfg.LoginPath), h.Dashboard.Get)
	r.GET(cfg.LoginPath, middleware.OptionalJWT(deps.Tokens, cfg.CookieName), h.Auth.LoginHint)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", middleware.RateLimit("login", deps.LoginCounter, cfg.LoginRateLimit, cfg.LoginRateWindow, deps.Metrics, deps.Logger), h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/me", middleware.JWT(deps.Tokens, cfg.CookieName), h.Auth.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens, cfg.CookieName))
	staff := middleware.RequireStaff()

	secured.GET("/dashboard", h.Dashboard.Get)

	courses := secured.Group("/courses")
	courses.GET("", h.Course.List)
	courses.GET("/:id", h.Course.Get)
	courses.POST("", staff, h.Course.Create)
	courses.PUT("/:id", staff, h.Course.Update)
	courses.DELETE("/:id", staff, h.Course.Delete)

	students := secured.Group("/students")
	students.GET("", h.Student.List)
	students.GET("/:id", h.Student.Get)
	students.PUT("/:id", staff, h.Student.Update)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", h.Enrollment.List)
	enrollments.POST("", staff, h.Enrollment.Create)
	enrollments.PATCH("/:id", staff, h.Enrollment.Update)
	enrollments.DELETE("/:id", staff, h.Enrollment.Delete)

	projects := secured.Group("/projects")
	projects.GET("", h.Project.List)
	projects.GET("/export", h.Project.Export)
	projects.POST("", h.Project.Create)
	projects.GET("/:id", h.Project.Get)
	projects.PUT("/:id", h.Project.Update)
	projects.DELETE("/:id", h.Project.Delete)
	projects.POST("/:id/transition", h.Project.Transition)
	projects.POST("/:id/tasks", h.Task.Create)
	projects.POST("/:id/tasks/bulk", h.Task.BulkCreate)

	tasks := secured.Group("/tasks")
	tasks.POST("/:id/toggle", h.Task.Toggle)
	tasks.DELETE("/:id", h.Task.Delete)

	admin := secured.Group("/admin", staff)
	admin.POST("/profiles/backfill", h.Admin.BackfillProfiles)

	return r
}
