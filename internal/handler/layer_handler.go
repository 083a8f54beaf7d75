package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/layers"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// LayerHandler exposes the layer stack
type LayerHandler struct {
	layers *layers.Manager
}

// NewLayerHandler creates a new layer handler
func NewLayerHandler(m *layers.Manager) *LayerHandler {
	return &LayerHandler{layers: m}
}

// MoveRequest is the body of POST /api/v1/layers/move
type MoveRequest struct {
	Index     *int             `json:"index" binding:"required"`
	Direction layers.Direction `json:"direction" binding:"required,oneof=up down"`
}

// GetLayers handles GET /api/v1/layers
func (h *LayerHandler) GetLayers(c *gin.Context) {
	response.Success(c, h.layers.List())
}

// Toggle handles POST /api/v1/layers/:key/toggle
func (h *LayerHandler) Toggle(c *gin.Context) {
	d, err := h.layers.Toggle(c.Param("key"))
	if err != nil {
		response.NotFound(c, "Layer not found", err)
		return
	}
	response.Success(c, d)
}

// OrderRequest is the body of PUT /api/v1/layers/order
type OrderRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

// Reorder handles PUT /api/v1/layers/order
func (h *LayerHandler) Reorder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid order request", err)
		return
	}
	list, err := h.layers.Reorder(req.Keys)
	if errors.Is(err, layers.ErrUnknownLayer) {
		response.NotFound(c, "Layer not found", err)
		return
	}
	if err != nil {
		response.BadRequest(c, "Invalid layer order", err)
		return
	}
	response.Success(c, list)
}

// Move handles POST /api/v1/layers/move. Moves past either end leave the
// order unchanged.
func (h *LayerHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid move request", err)
		return
	}
	list, err := h.layers.Move(*req.Index, req.Direction)
	if err != nil {
		response.BadRequest(c, "Invalid move request", err)
		return
	}
	response.Success(c, list)
}
