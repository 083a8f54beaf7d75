package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/engine"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/publish"
	"github.com/sero-sim/scene-engine/internal/selection"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// SelectionHandler handles clicks, explicit selection, the camera and the
// context snapshot
type SelectionHandler struct {
	engine      *engine.Engine
	broadcaster *publish.Broadcaster
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(e *engine.Engine, b *publish.Broadcaster) *SelectionHandler {
	return &SelectionHandler{engine: e, broadcaster: b}
}

// ClickRequest is a map click in geographic coordinates
type ClickRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

// SelectRequest names the entity to select
type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

// Click handles POST /api/v1/selection/click
func (h *SelectionHandler) Click(c *gin.Context) {
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid click", err)
		return
	}
	response.Success(c, h.engine.Click(*req.Lat, *req.Lon))
}

// SelectTrip handles POST /api/v1/selection/trip
func (h *SelectionHandler) SelectTrip(c *gin.Context) {
	h.selectByID(c, h.engine.SelectTrip)
}

// SelectStation handles POST /api/v1/selection/station
func (h *SelectionHandler) SelectStation(c *gin.Context) {
	h.selectByID(c, h.engine.SelectStation)
}

// SelectCell handles POST /api/v1/selection/cell
func (h *SelectionHandler) SelectCell(c *gin.Context) {
	h.selectByID(c, func(id string) (selection.State, error) {
		cellID, err := strconv.Atoi(id)
		if err != nil {
			return selection.State{}, engine.ErrUnknownCell
		}
		return h.engine.SelectCell(cellID)
	})
}

func (h *SelectionHandler) selectByID(c *gin.Context, fn func(string) (selection.State, error)) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid selection", err)
		return
	}
	st, err := fn(req.ID)
	if err != nil {
		response.NotFound(c, "Nothing to select", err)
		return
	}
	response.Success(c, st)
}

// Clear handles DELETE /api/v1/selection
func (h *SelectionHandler) Clear(c *gin.Context) {
	response.Success(c, h.engine.ClearSelection())
}

// GetSelection handles GET /api/v1/selection
func (h *SelectionHandler) GetSelection(c *gin.Context) {
	response.Success(c, h.engine.Selection())
}

// SetCamera handles POST /api/v1/camera
func (h *SelectionHandler) SetCamera(c *gin.Context) {
	var pose models.CameraPose
	if err := c.ShouldBindJSON(&pose); err != nil {
		response.BadRequest(c, "Invalid camera pose", err)
		return
	}
	h.engine.SetCamera(pose)
	response.Success(c, pose)
}

// GetContext handles GET /api/v1/context
func (h *SelectionHandler) GetContext(c *gin.Context) {
	response.Success(c, h.engine.Context())
}

// StreamContext handles GET /api/v1/context/stream. Each event carries a
// complete snapshot.
func (h *SelectionHandler) StreamContext(c *gin.Context) {
	snaps, cancel := h.broadcaster.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case snap, ok := <-snaps:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}
