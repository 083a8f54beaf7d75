package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sero-sim/scene-engine/internal/layers"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/observability"
	"github.com/sero-sim/scene-engine/internal/playback"
	"github.com/sero-sim/scene-engine/internal/publish"
	"github.com/sero-sim/scene-engine/internal/repository"
	"github.com/sero-sim/scene-engine/internal/selection"
	"github.com/sero-sim/scene-engine/internal/spatial"
	"github.com/sero-sim/scene-engine/internal/stats"
)

// Sentinel errors
var (
	ErrUnknownStation = errors.New("unknown station")
	ErrUnknownTrip    = errors.New("unknown trip")
	ErrUnknownCell    = errors.New("cell outside grid")
	ErrStaleRun       = errors.New("run superseded by a newer refresh")
	ErrClosed         = errors.New("engine is shut down")
)

// Runner produces a scenario from station input; *service.Orchestrator
type Runner interface {
	Run(ctx context.Context, input models.ScenarioInput, generation int64) *models.Scenario
}

// Journal records orchestration runs; *repository.RunRepository
type Journal interface {
	Insert(ctx context.Context, run *models.RunRecord) error
}

// Options wires the engine's collaborators. Nil fields get defaults.
type Options struct {
	Grid      *spatial.Grid
	Clock     *playback.Clock
	Layers    *layers.Manager
	Selection *selection.Aggregator
	Publisher publish.Publisher
	Journal   Journal
	Metrics   *observability.Metrics

	// ClickRadiusMeters is the pick radius for stations and vehicles
	ClickRadiusMeters float64
}

// Engine owns the scene: station input, the current scenario, the clock,
// the layer stack and the selection. The scenario is replaced wholesale by
// the refresh routine and only read everywhere else.
type Engine struct {
	runner    Runner
	grid      *spatial.Grid
	clock     *playback.Clock
	layers    *layers.Manager
	selection *selection.Aggregator
	publisher publish.Publisher
	journal   Journal
	metrics   *observability.Metrics
	radius    float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inputMu sync.Mutex
	input   models.ScenarioInput

	refreshMu  sync.Mutex
	generation int64
	cancelRun  context.CancelFunc
	closed     bool

	mu       sync.RWMutex
	scenario *models.Scenario

	publishMu sync.Mutex
	latest    *models.ContextSnapshot
}

// New creates an engine. Call Start to bind the clock loop.
func New(runner Runner, opts Options) *Engine {
	if opts.Grid == nil {
		opts.Grid = spatial.CityGrid
	}
	if opts.Clock == nil {
		opts.Clock = playback.NewClock(0, 1)
	}
	if opts.Layers == nil {
		opts.Layers = layers.NewManager(layers.DefaultDescriptors())
	}
	if opts.Selection == nil {
		opts.Selection = selection.NewAggregator(opts.Grid, DefaultCamera)
	}
	if opts.ClickRadiusMeters <= 0 {
		opts.ClickRadiusMeters = 75
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		runner:    runner,
		grid:      opts.Grid,
		clock:     opts.Clock,
		layers:    opts.Layers,
		selection: opts.Selection,
		publisher: opts.Publisher,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		radius:    opts.ClickRadiusMeters,
		ctx:       ctx,
		cancel:    cancel,
		input: models.ScenarioInput{
			Stations: map[models.FleetType][]models.StationInput{},
		},
	}
	e.clock.OnTick(func(playback.Snapshot) { e.metrics.IncClockTick() })
	return e
}

// DefaultCamera looks at downtown Seattle
var DefaultCamera = models.CameraPose{Lat: 47.6062, Lon: -122.3321, Zoom: 11.5}

// Start binds the clock's tick loop to the engine's lifetime and publishes
// the initial snapshot
func (e *Engine) Start() {
	e.clock.Start(e.ctx)
	e.recompute()
}

// Teardown cancels any in-flight refresh, stops the clock loop and closes
// the publishers. The engine cannot be restarted.
func (e *Engine) Teardown() {
	e.refreshMu.Lock()
	if e.closed {
		e.refreshMu.Unlock()
		return
	}
	e.closed = true
	if e.cancelRun != nil {
		e.cancelRun()
		e.cancelRun = nil
	}
	e.refreshMu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.clock.Stop()
	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			log.Printf("[Engine] Warning: failed to close publisher: %v", err)
		}
	}
	log.Printf("[Engine] Torn down")
}

// Clock returns the playback clock
func (e *Engine) Clock() *playback.Clock { return e.clock }

// Layers returns the layer manager
func (e *Engine) Layers() *layers.Manager { return e.layers }

// Grid returns the spatial grid
func (e *Engine) Grid() *spatial.Grid { return e.grid }

// Scenario returns the current scenario, nil before the first refresh.
// Callers must not mutate it.
func (e *Engine) Scenario() *models.Scenario {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenario
}

// Refresh runs the orchestrator on the current station input and installs
// the result, unless a newer refresh started meanwhile. Starting a refresh
// cancels the previous one. A superseded result is journaled and discarded
// with ErrStaleRun.
func (e *Engine) Refresh(ctx context.Context) (*models.Scenario, error) {
	e.refreshMu.Lock()
	if e.closed {
		e.refreshMu.Unlock()
		return nil, ErrClosed
	}
	if e.cancelRun != nil {
		e.cancelRun()
	}
	e.generation++
	gen := e.generation
	runCtx, cancel := context.WithCancel(ctx)
	e.cancelRun = cancel
	input := e.Stations()
	e.refreshMu.Unlock()
	defer cancel()

	scenario := e.runner.Run(runCtx, input, gen)

	e.refreshMu.Lock()
	stale := gen != e.generation || e.closed
	if !stale {
		e.mu.Lock()
		e.scenario = scenario
		e.mu.Unlock()
		e.clock.SetMaxTime(scenario.MaxTime())
		e.cancelRun = nil
	}
	e.refreshMu.Unlock()

	e.record(scenario, stale)

	if stale {
		e.metrics.IncStaleRun()
		log.Printf("[Engine] Discarding stale run (scenario=%s, generation=%d)", scenario.ID, gen)
		return scenario, ErrStaleRun
	}

	log.Printf("[Engine] Installed scenario %s (generation=%d, revision=%d, trips=%d, max_time=%.0fs)",
		scenario.ID, gen, scenario.Revision, len(scenario.Trips), scenario.MaxTime())
	e.recompute()
	return scenario, nil
}

// RefreshAsync starts a refresh in the background, bound to the engine's
// lifetime
func (e *Engine) RefreshAsync() {
	e.refreshMu.Lock()
	if e.closed {
		e.refreshMu.Unlock()
		return
	}
	e.wg.Add(1)
	e.refreshMu.Unlock()

	go func() {
		defer e.wg.Done()
		if _, err := e.Refresh(e.ctx); err != nil && !errors.Is(err, ErrStaleRun) && !errors.Is(err, ErrClosed) {
			log.Printf("[Engine] Warning: background refresh failed: %v", err)
		}
	}()
}

// Generation returns the number of refreshes started so far
func (e *Engine) Generation() int64 {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	return e.generation
}

func (e *Engine) record(s *models.Scenario, stale bool) {
	if e.journal == nil {
		return
	}
	rec, err := repository.RecordFromScenario(s, stale)
	if err != nil {
		log.Printf("[Engine] Warning: failed to build run record: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.journal.Insert(ctx, rec); err != nil {
		log.Printf("[Engine] Warning: failed to journal run %s: %v", s.ID, err)
	}
}

// Summary describes the current scene
type Summary struct {
	Ready      bool                  `json:"ready"`
	ScenarioID string                `json:"scenario_id,omitempty"`
	Generation int64                 `json:"generation"`
	Revision   int64                 `json:"revision"`
	Fallback   models.FallbackReason `json:"fallback,omitempty"`
	Cells      int                   `json:"cells"`
	Stations   int                   `json:"stations"`
	Trips      int                   `json:"trips"`
	MaxTime    float64               `json:"max_time"`
	Risk       models.RiskSummary    `json:"risk"`
	Fleets     []models.FleetOutcome `json:"fleets"`
	FetchedAt  time.Time             `json:"fetched_at,omitempty"`
	Playback   playback.Snapshot     `json:"playback"`
}

// Summary returns counts and status of the current scene
func (e *Engine) Summary() Summary {
	s := e.Scenario()
	out := Summary{
		Revision: e.Stations().Revision,
		Fleets:   []models.FleetOutcome{},
		Playback: e.clock.Snapshot(),
	}
	if s == nil {
		return out
	}
	out.Ready = true
	out.ScenarioID = s.ID
	out.Generation = s.Generation
	out.Fallback = s.Fallback
	out.Cells = len(s.Cells)
	out.Stations = len(s.Stations)
	out.Trips = len(s.Trips)
	out.MaxTime = s.MaxTime()
	out.Risk = stats.RiskSummary(s.Cells)
	out.FetchedAt = s.FetchedAt
	if s.Fleets != nil {
		out.Fleets = s.Fleets
	}
	return out
}
