package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/internal/middleware"
	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorID is the caller recorded as changed_by on history entries.
func actorID(c *gin.Context) *int64 {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	id := claims.AccountID
	return &id
}

// pathID parses a numeric path parameter. Non-numeric ids cannot name a row.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.ErrNotFound
	}
	return id, nil
}

// pageParams reads page and limit; zero lets the service apply its default size.
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		size = 0
	}
	return page, size
}

func optionalID(c *gin.Context, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, appErrors.Field(key, "Enter a whole number.")
	}
	return &id, nil
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}

func isAjax(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

func projectFilter(c *gin.Context) (models.ProjectFilter, error) {
	filter := models.ProjectFilter{
		Status:    models.ProjectStatus(strings.TrimSpace(c.Query("status"))),
		Priority:  models.ProjectPriority(strings.TrimSpace(c.Query("priority"))),
		Search:    strings.TrimSpace(c.Query("search")),
		Overdue:   queryBool(c, "overdue"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	var err error
	if filter.CourseID, err = optionalID(c, "course"); err != nil {
		return filter, err
	}
	if filter.StudentID, err = optionalID(c, "student"); err != nil {
		return filter, err
	}
	return filter, nil
}
