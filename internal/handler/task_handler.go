package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

type taskService interface {
	Create(ctx context.Context, projectID int64, req service.TaskRequest) (*models.Task, error)
	BulkCreate(ctx context.Context, projectID int64, req service.BulkTaskRequest) ([]models.Task, error)
	Toggle(ctx context.Context, id int64) (*models.Task, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// TaskHandler exposes task endpoints. Browser form posts are answered with a
// redirect to the project, XMLHttpRequest calls with JSON.
type TaskHandler struct {
	service    taskService
	projectURL string
}

// NewTaskHandler constructs the handler; basePath prefixes project redirects.
func NewTaskHandler(svc taskService, basePath string) *TaskHandler {
	return &TaskHandler{service: svc, projectURL: basePath + "/projects/"}
}

func (h *TaskHandler) redirectToProject(c *gin.Context, projectID int64) {
	c.Redirect(http.StatusSeeOther, h.projectURL+strconv.FormatInt(projectID, 10))
}

// Create godoc
// @Summary Add a task to a project
// @Tags Tasks
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body service.TaskRequest true "Task payload"
// @Success 200 {object} map[string]interface{}
// @Success 303
// @Failure 400 {object} map[string]interface{}
// @Router /projects/{id}/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, err := pathID(c, "id")
	if err != nil {
		response.Failure(c, err)
		return
	}
	var req service.TaskRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Failure(c, invalidPayload(err))
		return
	}
	task, err := h.service.Create(c.Request.Context(), projectID, req)
	if err != nil {
		response.Failure(c, err)
		return
	}
	if !isAjax(c) {
		h.redirectToProject(c, projectID)
		return
	}
	response.Success(c, gin.H{"task_id": task.ID, "title": task.Title})
}

// BulkCreate godoc
// @Summary Add several tasks, one per line
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body service.BulkTaskRequest true "Newline separated titles"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /projects/{id}/tasks/bulk [post]
func (h *TaskHandler) BulkCreate(c *gin.Context) {
	projectID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.BulkTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	tasks, err := h.service.BulkCreate(c.Request.Context(), projectID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tasks)
}

// Toggle godoc
// @Summary Flip task completion
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /tasks/{id}/toggle [post]
func (h *TaskHandler) Toggle(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Failure(c, err)
		return
	}
	task, err := h.service.Toggle(c.Request.Context(), id)
	if err != nil {
		response.Failure(c, err)
		return
	}
	response.Success(c, gin.H{"is_completed": task.IsCompleted, "completed_at": task.CompletedAt})
}

// Delete godoc
// @Summary Delete task
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} map[string]interface{}
// @Success 303
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Failure(c, err)
		return
	}
	projectID, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		response.Failure(c, err)
		return
	}
	if !isAjax(c) {
		h.redirectToProject(c, projectID)
		return
	}
	response.Success(c, nil)
}
