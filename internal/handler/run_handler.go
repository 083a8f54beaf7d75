package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/repository"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// RunHandler serves the orchestration run journal
type RunHandler struct {
	repo *repository.RunRepository
}

// NewRunHandler creates a new run handler; repo is nil when the journal is disabled
func NewRunHandler(repo *repository.RunRepository) *RunHandler {
	return &RunHandler{repo: repo}
}

// GetRuns handles GET /api/v1/runs
func (h *RunHandler) GetRuns(c *gin.Context) {
	if h.repo == nil {
		response.Error(c, http.StatusServiceUnavailable, "Run journal is disabled", errors.New("DB_PATH is empty"))
		return
	}

	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	runs, total, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to get runs", err)
		return
	}

	// Calculate pagination info
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}
	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPages++
	}

	response.Success(c, gin.H{
		"runs":       runs,
		"total":      total,
		"page":       filter.Page,
		"pageSize":   filter.PageSize,
		"totalPages": totalPages,
	})
}
