package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/sero-sim/scene-engine/internal/api"
	"github.com/sero-sim/scene-engine/internal/backend"
	"github.com/sero-sim/scene-engine/internal/config"
	"github.com/sero-sim/scene-engine/internal/database"
	"github.com/sero-sim/scene-engine/internal/engine"
	"github.com/sero-sim/scene-engine/internal/middleware"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/observability"
	"github.com/sero-sim/scene-engine/internal/playback"
	"github.com/sero-sim/scene-engine/internal/publish"
	"github.com/sero-sim/scene-engine/internal/repository"
	"github.com/sero-sim/scene-engine/internal/service"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

func main() {
	// 加载配置
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("Warning: %v", err)
	}

	metrics := observability.NewMetrics()

	// 初始化数据库
	var runs *repository.RunRepository
	var journal engine.Journal
	if cfg.DBPath != "" {
		if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer database.Close()
		runs = repository.NewRunRepository(database.GetDB())
		journal = runs
	} else {
		log.Printf("DB_PATH is empty, run journal disabled")
	}

	broadcaster := publish.NewBroadcaster()
	publishers := publish.Multi{broadcaster}
	if len(cfg.KafkaBrokers) > 0 {
		publishers = append(publishers, publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaSnapshotTopic))
		log.Printf("Publishing snapshots to Kafka topic %s", cfg.KafkaSnapshotTopic)
	}

	client := backend.New(cfg.APIBaseURL, cfg.BackendTimeout, metrics)
	orchestrator := service.NewOrchestrator(client, spatial.CityGrid, metrics, cfg.RouteConcurrency)

	eng := engine.New(orchestrator, engine.Options{
		Grid:      spatial.CityGrid,
		Clock:     playback.NewClock(cfg.TickInterval, cfg.PlaybackSpeed),
		Publisher: publishers,
		Journal:   journal,
		Metrics:   metrics,
	})
	eng.Start()

	if cfg.StationsFile != "" {
		if err := seedStations(eng, cfg.StationsFile); err != nil {
			log.Fatal("Failed to load stations:", err)
		}
	}
	eng.RefreshAsync()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)

	// 初始化路由
	router := api.SetupRouter(api.Deps{
		Config:      cfg,
		Engine:      eng,
		Broadcaster: broadcaster,
		Runs:        runs,
		Metrics:     metrics,
		RateLimiter: limiter,
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	srv := api.NewServer(cfg.Port, cors(router), broadcaster)

	go func() {
		// 启动服务器
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	eng.Teardown()
	limiter.Stop()
}

// seedStations loads the initial station lists, a JSON object keyed by fleet
func seedStations(eng *engine.Engine, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stations file: %w", err)
	}

	var byFleet map[string][]models.StationInput
	if err := json.Unmarshal(raw, &byFleet); err != nil {
		return fmt.Errorf("failed to parse stations file: %w", err)
	}

	for name, list := range byFleet {
		fleet, err := models.ParseFleetType(name)
		if err != nil {
			return err
		}
		if _, err := eng.SetStations(fleet, list); err != nil {
			return fmt.Errorf("invalid %s stations: %w", fleet, err)
		}
		log.Printf("Loaded %d %s stations from %s", len(list), fleet, path)
	}
	return nil
}
