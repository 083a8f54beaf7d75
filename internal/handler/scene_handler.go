package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/config"
	"github.com/sero-sim/scene-engine/internal/engine"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// SceneHandler serves the scene summary, render list, trips and grid lookups
type SceneHandler struct {
	engine   *engine.Engine
	mapToken string
}

// NewSceneHandler creates a new scene handler
func NewSceneHandler(e *engine.Engine, mapToken string) *SceneHandler {
	return &SceneHandler{engine: e, mapToken: mapToken}
}

// requireMapToken answers 503 when the map cannot be rendered
func (h *SceneHandler) requireMapToken(c *gin.Context) bool {
	if h.mapToken == "" {
		response.Error(c, http.StatusServiceUnavailable, "Map is not configured", config.ErrMissingMapToken)
		return false
	}
	return true
}

// GetScene handles GET /api/v1/scene
func (h *SceneHandler) GetScene(c *gin.Context) {
	if !h.requireMapToken(c) {
		return
	}
	sum := h.engine.Summary()
	response.Success(c, gin.H{
		"summary":   sum,
		"map_token": h.mapToken,
	})
}

// GetRender handles GET /api/v1/scene/render
func (h *SceneHandler) GetRender(c *gin.Context) {
	if !h.requireMapToken(c) {
		return
	}
	c.JSON(http.StatusOK, h.engine.RenderList())
}

// Refresh handles POST /api/v1/scene/refresh
func (h *SceneHandler) Refresh(c *gin.Context) {
	// Detached from the request so a client disconnect does not abort the run
	s, err := h.engine.Refresh(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, engine.ErrStaleRun):
		response.Error(c, http.StatusConflict, "Refresh was superseded by a newer one", err)
		return
	case errors.Is(err, engine.ErrClosed):
		response.Error(c, http.StatusServiceUnavailable, "Engine is shutting down", err)
		return
	case err != nil:
		response.InternalError(c, "Failed to refresh scene", err)
		return
	}

	response.Success(c, gin.H{
		"scenario_id": s.ID,
		"generation":  s.Generation,
		"fallback":    s.Fallback,
		"fleets":      s.Fleets,
		"summary":     h.engine.Summary(),
	})
}

// GetTrips handles GET /api/v1/trips
func (h *SceneHandler) GetTrips(c *gin.Context) {
	s := h.engine.Scenario()
	if s == nil {
		response.Success(c, gin.H{"trips": []any{}, "count": 0})
		return
	}
	response.Success(c, gin.H{
		"trips": s.Trips,
		"count": len(s.Trips),
	})
}

// GetTripPosition handles GET /api/v1/trips/:id/position?t=
func (h *SceneHandler) GetTripPosition(c *gin.Context) {
	t := h.engine.Clock().Now()
	if raw := c.Query("t"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.BadRequest(c, "Invalid t parameter", err)
			return
		}
		t = v
	}

	pos, err := h.engine.TripPosition(c.Param("id"), t)
	if err != nil {
		response.NotFound(c, "Trip not found", err)
		return
	}
	response.Success(c, pos)
}

// GetCell handles GET /api/v1/grid/cell?lat=&lon=
func (h *SceneHandler) GetCell(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "Invalid lat parameter", err)
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		response.BadRequest(c, "Invalid lon parameter", err)
		return
	}

	cell, err := h.engine.CellAt(lat, lon)
	if err != nil {
		response.NotFound(c, "Point is outside the grid", err)
		return
	}
	response.Success(c, cell)
}
