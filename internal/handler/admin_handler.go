package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

type profileBackfiller interface {
	Backfill(ctx context.Context) (int, error)
}

// AdminHandler exposes staff maintenance endpoints.
type AdminHandler struct {
	profiles profileBackfiller
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(profiles profileBackfiller) *AdminHandler {
	return &AdminHandler{profiles: profiles}
}

// BackfillProfiles godoc
// @Summary Create missing student profiles
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/profiles/backfill [post]
func (h *AdminHandler) BackfillProfiles(c *gin.Context) {
	created, err := h.profiles.Backfill(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"created": created}, nil)
}
