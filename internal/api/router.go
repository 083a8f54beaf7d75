package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sero-sim/scene-engine/internal/config"
	"github.com/sero-sim/scene-engine/internal/engine"
	"github.com/sero-sim/scene-engine/internal/handler"
	"github.com/sero-sim/scene-engine/internal/middleware"
	"github.com/sero-sim/scene-engine/internal/observability"
	"github.com/sero-sim/scene-engine/internal/publish"
	"github.com/sero-sim/scene-engine/internal/repository"
)

// Deps are the components the routes are served from
type Deps struct {
	Config      *config.Config
	Engine      *engine.Engine
	Broadcaster *publish.Broadcaster
	Runs        *repository.RunRepository // nil when the journal is disabled
	Metrics     *observability.Metrics
	RateLimiter *middleware.RateLimiter
}

// SetupRouter builds the gin engine with every route
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Scene engine is running",
			"map":     d.Config.Validate() == nil,
		})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	limiter := d.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(d.Config.RateLimit, time.Minute)
	}
	auth := middleware.Auth(d.Config.JWTSecret)

	sceneHandler := handler.NewSceneHandler(d.Engine, d.Config.MapToken)
	stationHandler := handler.NewStationHandler(d.Engine)
	playbackHandler := handler.NewPlaybackHandler(d.Engine.Clock())
	layerHandler := handler.NewLayerHandler(d.Engine.Layers())
	selectionHandler := handler.NewSelectionHandler(d.Engine, d.Broadcaster)
	runHandler := handler.NewRunHandler(d.Runs)

	api := r.Group("/api/v1")
	{
		scene := api.Group("/scene")
		{
			scene.GET("", sceneHandler.GetScene)
			scene.GET("/render", sceneHandler.GetRender)
			scene.POST("/refresh", auth, limiter.Middleware(), sceneHandler.Refresh)
		}

		stations := api.Group("/stations")
		{
			stations.GET("", stationHandler.GetStations)
			stations.PUT("/:fleet", auth, stationHandler.ReplaceFleet)
			stations.PATCH("/:fleet/:id", auth, stationHandler.PatchStation)
		}

		trips := api.Group("/trips")
		{
			trips.GET("", sceneHandler.GetTrips)
			trips.GET("/:id/position", sceneHandler.GetTripPosition)
		}

		api.GET("/grid/cell", sceneHandler.GetCell)

		pb := api.Group("/playback")
		{
			pb.GET("", playbackHandler.GetState)
			pb.POST("/play", playbackHandler.Play)
			pb.POST("/pause", playbackHandler.Pause)
			pb.POST("/seek", playbackHandler.Seek)
			pb.POST("/speed", playbackHandler.SetSpeed)
		}

		ls := api.Group("/layers")
		{
			ls.GET("", layerHandler.GetLayers)
			ls.POST("/:key/toggle", layerHandler.Toggle)
			ls.POST("/move", layerHandler.Move)
			ls.PUT("/order", layerHandler.Reorder)
		}

		sel := api.Group("/selection")
		{
			sel.GET("", selectionHandler.GetSelection)
			sel.POST("/click", selectionHandler.Click)
			sel.POST("/trip", selectionHandler.SelectTrip)
			sel.POST("/station", selectionHandler.SelectStation)
			sel.POST("/cell", selectionHandler.SelectCell)
			sel.DELETE("", selectionHandler.Clear)
		}

		api.POST("/camera", selectionHandler.SetCamera)
		api.GET("/context", selectionHandler.GetContext)
		api.GET("/context/stream", selectionHandler.StreamContext)

		api.GET("/runs", runHandler.GetRuns)
	}

	return r
}
