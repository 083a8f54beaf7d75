package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/playback"
	"github.com/sero-sim/scene-engine/pkg/response"
)

// PlaybackHandler controls the simulation clock
type PlaybackHandler struct {
	clock *playback.Clock
}

// NewPlaybackHandler creates a new playback handler
func NewPlaybackHandler(clock *playback.Clock) *PlaybackHandler {
	return &PlaybackHandler{clock: clock}
}

// SeekRequest is the body of POST /api/v1/playback/seek
type SeekRequest struct {
	Time *float64 `json:"time" binding:"required"`
}

// SpeedRequest is the body of POST /api/v1/playback/speed
type SpeedRequest struct {
	Speed float64 `json:"speed" binding:"required,gt=0"`
}

// GetState handles GET /api/v1/playback
func (h *PlaybackHandler) GetState(c *gin.Context) {
	response.Success(c, h.clock.Snapshot())
}

// Play handles POST /api/v1/playback/play
func (h *PlaybackHandler) Play(c *gin.Context) {
	response.Success(c, h.clock.Play())
}

// Pause handles POST /api/v1/playback/pause
func (h *PlaybackHandler) Pause(c *gin.Context) {
	response.Success(c, h.clock.Pause())
}

// Seek handles POST /api/v1/playback/seek
func (h *PlaybackHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid seek request", err)
		return
	}
	response.Success(c, h.clock.Seek(*req.Time))
}

// SetSpeed handles POST /api/v1/playback/speed
func (h *PlaybackHandler) SetSpeed(c *gin.Context) {
	var req SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid speed request", err)
		return
	}
	response.Success(c, h.clock.SetSpeed(req.Speed))
}
