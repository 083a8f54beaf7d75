package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sero-sim/scene-engine/internal/backend"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/observability"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// Backend is the subset of the optimization/risk service the orchestrator uses
type Backend interface {
	LatestRisk(ctx context.Context) ([]backend.RiskCell, error)
	OptimizeDeployment(ctx context.Context, req backend.DeploymentRequest) (*backend.DeploymentResponse, error)
	Route(ctx context.Context, req backend.RouteRequest) (*backend.RouteResponse, error)
}

// Orchestrator fetches risk cells, per-fleet deployments and per-move routes
// and assembles them into a Scenario. Fetch failures degrade the scenario,
// they never fail the run.
type Orchestrator struct {
	backend          Backend
	grid             *spatial.Grid
	metrics          *observability.Metrics
	routeConcurrency int
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(b Backend, grid *spatial.Grid, metrics *observability.Metrics, routeConcurrency int) *Orchestrator {
	if routeConcurrency <= 0 {
		routeConcurrency = 8
	}
	return &Orchestrator{
		backend:          b,
		grid:             grid,
		metrics:          metrics,
		routeConcurrency: routeConcurrency,
	}
}

// Run executes one full fetch sequence. The returned scenario is never nil;
// if no trip could be produced it carries the fallback trip and the reason.
func (o *Orchestrator) Run(ctx context.Context, input models.ScenarioInput, generation int64) *models.Scenario {
	start := time.Now()
	scenario := &models.Scenario{
		ID:         uuid.NewString(),
		Generation: generation,
		Revision:   input.Revision,
		Cells:      []models.GridCell{},
		Stations:   []models.Station{},
		Trips:      []models.Trip{},
		FetchedAt:  start,
	}

	log.Printf("[Orchestrator] Starting run (scenario=%s, generation=%d, revision=%d)", scenario.ID, generation, input.Revision)

	// 1. Risk grid; failure leaves the heatmap empty
	riskCells, err := o.backend.LatestRisk(ctx)
	if err != nil {
		log.Printf("[Orchestrator] Warning: risk fetch failed, continuing with empty grid: %v", err)
	} else {
		scenario.Cells = backend.NormalizeRiskCells(o.grid, riskCells)
		scenario.RiskOK = true
	}

	// 2. Fleets one after another
	totalMoves := 0
	fleetsOK := 0
	for _, fleet := range models.Fleets {
		stations, trips, outcome := o.runFleet(ctx, fleet, input.Stations[fleet])
		scenario.Fleets = append(scenario.Fleets, outcome)
		if !outcome.OK {
			continue
		}
		fleetsOK++
		totalMoves += outcome.Moves
		scenario.Stations = append(scenario.Stations, stations...)
		scenario.Trips = append(scenario.Trips, trips...)
	}

	// 3. Never leave the scene empty
	if len(scenario.Trips) == 0 {
		switch {
		case fleetsOK == 0:
			scenario.Fallback = models.FallbackBackendFailure
		case totalMoves == 0:
			scenario.Fallback = models.FallbackNoMoves
		default:
			scenario.Fallback = models.FallbackRoutesFailed
		}
		scenario.Trips = []models.Trip{FallbackTrip()}
		log.Printf("[Orchestrator] No trips produced (reason=%s), substituting fallback trip", scenario.Fallback)
	}

	scenario.Duration = time.Since(start)
	o.metrics.ObserveRun(string(scenario.Fallback), len(scenario.Trips))
	log.Printf("[Orchestrator] Run completed: %d cells, %d stations, %d trips in %v",
		len(scenario.Cells), len(scenario.Stations), len(scenario.Trips), scenario.Duration)
	return scenario
}

// runFleet handles one fleet: deployment, move resolution and route fan-out
func (o *Orchestrator) runFleet(ctx context.Context, fleet models.FleetType, inputs []models.StationInput) ([]models.Station, []models.Trip, models.FleetOutcome) {
	outcome := models.FleetOutcome{FleetType: fleet}

	resp, err := o.backend.OptimizeDeployment(ctx, backend.DeploymentRequest{
		FleetType: string(fleet),
		Stations:  backend.StationRequests(inputs),
	})
	if err != nil {
		outcome.Error = err.Error()
		log.Printf("[Orchestrator] Warning: deployment for fleet=%s failed, skipping fleet: %v", fleet, err)
		return nil, nil, outcome
	}

	stations, moves := backend.NormalizeDeployment(fleet, resp)
	outcome.OK = true
	outcome.Stations = len(stations)
	outcome.Moves = len(moves)
	outcome.TotalTravel = resp.TotalTravelCost

	// Resolve endpoints against the deployment's own station list
	byID := make(map[string]models.Station, len(stations))
	for _, s := range stations {
		byID[s.StationID] = s
	}

	type resolvedMove struct {
		move     models.Move
		from, to models.Station
		index    int
	}
	resolved := make([]resolvedMove, 0, len(moves))
	for i, m := range moves {
		if m.IsSelfMove() {
			outcome.DroppedMoves++
			o.metrics.IncDroppedMove("self_move")
			log.Printf("[Orchestrator] Warning: dropping self-move %s->%s (fleet=%s)", m.FromStationID, m.ToStationID, fleet)
			continue
		}
		from, okFrom := byID[m.FromStationID]
		to, okTo := byID[m.ToStationID]
		if !okFrom || !okTo {
			outcome.DroppedMoves++
			o.metrics.IncDroppedMove("unresolved_endpoint")
			log.Printf("[Orchestrator] Warning: dropping move %s->%s (fleet=%s): endpoint not in deployment stations", m.FromStationID, m.ToStationID, fleet)
			continue
		}
		resolved = append(resolved, resolvedMove{move: m, from: from, to: to, index: i})
	}

	// Route fan-out; results land in their move's slot so order is stable
	slots := make([]*models.Trip, len(resolved))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.routeConcurrency)
	for i, rm := range resolved {
		i, rm := i, rm
		g.Go(func() error {
			trip, err := o.routeMove(gctx, rm.move, rm.from, rm.to, rm.index)
			if errors.Is(err, models.ErrInvalidPath) {
				o.metrics.IncDroppedMove("invalid_path")
				log.Printf("[Orchestrator] Notice: route %s->%s (fleet=%s) not playable, dropped: %v", rm.from.StationID, rm.to.StationID, fleet, err)
				return nil
			}
			if err != nil {
				log.Printf("[Orchestrator] Warning: route %s->%s (fleet=%s) dropped: %v", rm.from.StationID, rm.to.StationID, fleet, err)
				return nil
			}
			slots[i] = trip
			return nil
		})
	}
	_ = g.Wait()

	trips := make([]models.Trip, 0, len(slots))
	for _, t := range slots {
		if t == nil {
			outcome.FailedRoutes++
			continue
		}
		trips = append(trips, *t)
	}
	outcome.Trips = len(trips)

	log.Printf("[Orchestrator] fleet=%s: %d stations, %d moves, %d dropped, %d routes failed, %d trips",
		fleet, outcome.Stations, outcome.Moves, outcome.DroppedMoves, outcome.FailedRoutes, outcome.Trips)
	return stations, trips, outcome
}

// routeMove requests the route for one resolved move and builds its trip
func (o *Orchestrator) routeMove(ctx context.Context, m models.Move, from, to models.Station, index int) (*models.Trip, error) {
	resp, err := o.backend.Route(ctx, backend.RouteRequest{
		StartLat: from.Lat,
		StartLon: from.Lon,
		EndLat:   to.Lat,
		EndLon:   to.Lon,
	})
	if err != nil {
		return nil, err
	}

	path, err := backend.NormalizeRoute(resp)
	if err != nil {
		return nil, fmt.Errorf("unusable route: %w", err)
	}

	distance := resp.TotalLength
	if distance <= 0 {
		distance = spatial.PathLength(spatial.PathPoints(path))
	}

	return &models.Trip{
		ID:              models.TripID(m.FleetType, from.StationID, to.StationID, index),
		FleetType:       m.FleetType,
		VehicleKind:     models.VehicleKindFor(m.FleetType),
		Path:            path,
		FromStationID:   from.StationID,
		ToStationID:     to.StationID,
		FromStationName: from.Name,
		ToStationName:   to.Name,
		NumVehicles:       m.NumVehicles,
		DistanceMeters:    distance,
		RouteLengthMeters: resp.TotalLength,
		TravelTimeSeconds: resp.TotalTime,
		MoveDistance:      m.Distance,
	}, nil
}
