package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

type projectService interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.ProjectDetail, error)
	Create(ctx context.Context, req service.ProjectRequest, actorID *int64) (*models.ProjectDetail, error)
	Update(ctx context.Context, id int64, req service.ProjectRequest, actorID *int64) (*models.ProjectDetail, error)
	Transition(ctx context.Context, id int64, target models.ProjectStatus, actorID *int64, comment string) (*models.Project, error)
	Delete(ctx context.Context, id int64) error
}

type projectExporter interface {
	ExportProjects(ctx context.Context, filter models.ProjectFilter, format models.ExportFormat) (*models.ExportFile, error)
}

// ProjectHandler exposes project CRUD, export and workflow endpoints.
type ProjectHandler struct {
	service  projectService
	exporter projectExporter
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(svc projectService, exporter projectExporter) *ProjectHandler {
	return &ProjectHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param status query string false "Status"
// @Param course query int false "Course ID"
// @Param student query int false "Student ID"
// @Param priority query string false "Priority"
// @Param search query string false "Title contains"
// @Param overdue query bool false "Only overdue projects"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	filter, err := projectFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	projects, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// Get godoc
// @Summary Get project detail
// @Description Includes tasks, the latest status history and allowed transitions
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create project
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.ProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update project
// @Description A changed status goes through the workflow and is recorded in the history
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body service.ProjectRequest true "Project payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete project
// @Tags Projects
// @Param id path int true "Project ID"
// @Success 204
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export projects
// @Tags Projects
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /projects/export [get]
func (h *ProjectHandler) Export(c *gin.Context) {
	filter, err := projectFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	file, err := h.exporter.ExportProjects(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file)
}

// Transition godoc
// @Summary Change project status
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body service.TransitionRequest true "Target status"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /projects/{id}/transition [post]
func (h *ProjectHandler) Transition(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Failure(c, err)
		return
	}
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, invalidPayload(err))
		return
	}
	project, err := h.service.Transition(c.Request.Context(), id, req.NewStatus, actorID(c), strings.TrimSpace(req.Comment))
	if err != nil {
		response.Failure(c, err)
		return
	}
	response.Success(c, gin.H{"status": project.Status})
}
