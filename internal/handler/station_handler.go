package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/engine"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// StationHandler serves the station editor. Every accepted edit bumps the
// input revision and starts a background refresh.
type StationHandler struct {
	engine *engine.Engine
}

// NewStationHandler creates a new station handler
func NewStationHandler(e *engine.Engine) *StationHandler {
	return &StationHandler{engine: e}
}

// GetStations handles GET /api/v1/stations
func (h *StationHandler) GetStations(c *gin.Context) {
	var deployed []models.Station
	if s := h.engine.Scenario(); s != nil {
		deployed = s.Stations
	}
	if deployed == nil {
		deployed = []models.Station{}
	}
	response.Success(c, gin.H{
		"input":    h.engine.Stations(),
		"deployed": deployed,
	})
}

// ReplaceFleet handles PUT /api/v1/stations/:fleet
func (h *StationHandler) ReplaceFleet(c *gin.Context) {
	fleet, err := models.ParseFleetType(c.Param("fleet"))
	if err != nil {
		response.BadRequest(c, "Invalid fleet", err)
		return
	}

	var list []models.StationInput
	if err := c.ShouldBindJSON(&list); err != nil {
		response.BadRequest(c, "Invalid station list", err)
		return
	}

	revision, err := h.engine.SetStations(fleet, list)
	if err != nil {
		response.BadRequest(c, "Invalid station list", err)
		return
	}
	h.engine.RefreshAsync()

	response.Accepted(c, gin.H{
		"fleet_type": fleet,
		"revision":   revision,
		"stations":   len(list),
	})
}

// PatchStation handles PATCH /api/v1/stations/:fleet/:id
func (h *StationHandler) PatchStation(c *gin.Context) {
	fleet, err := models.ParseFleetType(c.Param("fleet"))
	if err != nil {
		response.BadRequest(c, "Invalid fleet", err)
		return
	}

	var patch models.StationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "Invalid station patch", err)
		return
	}

	station, revision, err := h.engine.PatchStation(fleet, c.Param("id"), patch)
	if errors.Is(err, engine.ErrUnknownStation) {
		response.NotFound(c, "Station not found", err)
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to update station", err)
		return
	}
	h.engine.RefreshAsync()

	response.Accepted(c, gin.H{
		"station":  station,
		"revision": revision,
	})
}
