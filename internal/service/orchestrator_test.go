package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sero-sim/scene-engine/internal/backend"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// fakeBackend answers from in-memory tables
type fakeBackend struct {
	riskErr     error
	risk        []backend.RiskCell
	deployments map[string]*backend.DeploymentResponse
	deployErr   map[string]error
	routeErr    func(req backend.RouteRequest) error
	routeDelay  func(req backend.RouteRequest) time.Duration
	route       func(req backend.RouteRequest) *backend.RouteResponse

	mu          sync.Mutex
	deployOrder []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeBackend) LatestRisk(ctx context.Context) ([]backend.RiskCell, error) {
	if f.riskErr != nil {
		return nil, f.riskErr
	}
	return f.risk, nil
}

func (f *fakeBackend) OptimizeDeployment(ctx context.Context, req backend.DeploymentRequest) (*backend.DeploymentResponse, error) {
	f.mu.Lock()
	f.deployOrder = append(f.deployOrder, req.FleetType)
	f.mu.Unlock()
	if err := f.deployErr[req.FleetType]; err != nil {
		return nil, err
	}
	resp, ok := f.deployments[req.FleetType]
	if !ok {
		return &backend.DeploymentResponse{FleetType: req.FleetType}, nil
	}
	return resp, nil
}

func (f *fakeBackend) Route(ctx context.Context, req backend.RouteRequest) (*backend.RouteResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.routeDelay != nil {
		time.Sleep(f.routeDelay(req))
	}
	if f.routeErr != nil {
		if err := f.routeErr(req); err != nil {
			return nil, err
		}
	}
	if f.route != nil {
		if resp := f.route(req); resp != nil {
			return resp, nil
		}
	}
	return &backend.RouteResponse{Points: []backend.RoutePoint{
		{Lat: req.StartLat, Lon: req.StartLon, Time: 0},
		{Lat: req.EndLat, Lon: req.EndLon, Time: 120},
	}}, nil
}

func station(id string, lat, lon float64) backend.DeploymentStation {
	return backend.DeploymentStation{StationID: id, Lat: lat, Lon: lon, VehiclesCurrent: 2, VehiclesTarget: 2}
}

func newTestOrchestrator(b Backend) *Orchestrator {
	return NewOrchestrator(b, spatial.CityGrid, nil, 4)
}

func TestRunProducesTripsInMoveOrder(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{
					station("F1", 47.60, -122.33), station("F2", 47.62, -122.35), station("F3", 47.65, -122.30),
				},
				Moves: []backend.DeploymentMove{
					{FromStationID: "F1", ToStationID: "F2"},
					{FromStationID: "F2", ToStationID: "F3"},
					{FromStationID: "F1", ToStationID: "F2"},
				},
			},
		},
		// Later moves finish first; assembly must still follow move order.
		routeDelay: func(req backend.RouteRequest) time.Duration {
			if req.StartLat == 47.60 {
				return 30 * time.Millisecond
			}
			return 0
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if s.Fallback != models.FallbackNone {
		t.Fatalf("unexpected fallback %q", s.Fallback)
	}
	want := []string{"fire-F1-F2-0", "fire-F2-F3-1", "fire-F1-F2-2"}
	if len(s.Trips) != len(want) {
		t.Fatalf("expected %d trips, got %d", len(want), len(s.Trips))
	}
	for i, id := range want {
		if s.Trips[i].ID != id {
			t.Fatalf("trip %d id = %s, want %s", i, s.Trips[i].ID, id)
		}
	}
	if s.Trips[0].VehicleKind != "engine" || s.Trips[0].DistanceMeters <= 0 {
		t.Fatalf("trip not fully built: %#v", s.Trips[0])
	}
	if fb.maxInFlight.Load() < 2 {
		t.Fatalf("expected concurrent route requests, max in flight %d", fb.maxInFlight.Load())
	}
	for _, st := range s.Stations {
		if !st.InMove {
			t.Fatalf("station %s should be in move", st.StationID)
		}
	}
}

func TestRunFleetsAreSequentialFireFirst(t *testing.T) {
	fb := &fakeBackend{}
	newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(fb.deployOrder) != 2 || fb.deployOrder[0] != "fire" || fb.deployOrder[1] != "police" {
		t.Fatalf("unexpected deployment order %v", fb.deployOrder)
	}
}

func TestRunOneFleetFailureIsIsolated(t *testing.T) {
	fb := &fakeBackend{
		deployErr: map[string]error{"fire": errors.New("optimizer down")},
		deployments: map[string]*backend.DeploymentResponse{
			"police": {
				Stations: []backend.DeploymentStation{station("P1", 47.61, -122.33), station("P2", 47.66, -122.31)},
				Moves:    []backend.DeploymentMove{{FromStationID: "P1", ToStationID: "P2"}},
			},
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(s.Stations) != 2 {
		t.Fatalf("expected only police stations, got %d", len(s.Stations))
	}
	for _, st := range s.Stations {
		if st.FleetType != models.FleetPolice {
			t.Fatalf("unexpected station from fleet %s", st.FleetType)
		}
	}
	if len(s.Trips) != 1 || s.Trips[0].FleetType != models.FleetPolice || s.Trips[0].ID != "police-P1-P2-0" {
		t.Fatalf("unexpected trips %#v", s.Trips)
	}
	if s.Fleets[0].OK || !s.Fleets[1].OK {
		t.Fatalf("unexpected fleet outcomes %#v", s.Fleets)
	}
}

func TestRunRiskFailureDegradesToEmptyGrid(t *testing.T) {
	fb := &fakeBackend{riskErr: errors.New("no model")}
	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if s.RiskOK || len(s.Cells) != 0 {
		t.Fatalf("expected empty grid, got %d cells (ok=%v)", len(s.Cells), s.RiskOK)
	}
	if s.Cells == nil {
		t.Fatalf("cells should be an empty list, not nil")
	}
}

func TestRunUnresolvedMoveDropped(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{station("F1", 47.60, -122.33), station("F2", 47.62, -122.35)},
				Moves: []backend.DeploymentMove{
					{FromStationID: "F1", ToStationID: "GHOST"},
					{FromStationID: "F1", ToStationID: "F2"},
				},
			},
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(s.Trips) != 1 || s.Trips[0].ID != "fire-F1-F2-1" {
		t.Fatalf("unexpected trips %#v", s.Trips)
	}
	if s.Fleets[0].DroppedMoves != 1 {
		t.Fatalf("expected 1 dropped move, got %d", s.Fleets[0].DroppedMoves)
	}
}

func TestRunFailedRouteDropsOnlyThatTrip(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{
					station("F1", 47.60, -122.33), station("F2", 47.62, -122.35), station("F3", 47.65, -122.30),
				},
				Moves: []backend.DeploymentMove{
					{FromStationID: "F1", ToStationID: "F2"},
					{FromStationID: "F2", ToStationID: "F3"},
				},
			},
		},
		routeErr: func(req backend.RouteRequest) error {
			if req.EndLat == 47.62 {
				return fmt.Errorf("no route found")
			}
			return nil
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(s.Trips) != 1 || s.Trips[0].ID != "fire-F2-F3-1" {
		t.Fatalf("unexpected trips %#v", s.Trips)
	}
	if s.Fleets[0].FailedRoutes != 1 {
		t.Fatalf("expected 1 failed route, got %d", s.Fleets[0].FailedRoutes)
	}
}

func TestRunSelfMoveTriggersFallback(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{station("FS1", 47.60, -122.33)},
				Moves:    []backend.DeploymentMove{{FromStationID: "FS1", ToStationID: "FS1"}},
			},
		},
	}
	input := models.ScenarioInput{Stations: map[models.FleetType][]models.StationInput{
		models.FleetFire: {{StationID: "FS1", Lat: 47.60, Lon: -122.33, VehiclesCurrent: 2}},
	}}

	s := newTestOrchestrator(fb).Run(context.Background(), input, 1)
	if len(s.Trips) != 1 || s.Trips[0].ID != FallbackTripID {
		t.Fatalf("expected only the fallback trip, got %#v", s.Trips)
	}
	if s.Fallback != models.FallbackRoutesFailed {
		t.Fatalf("fallback reason = %q", s.Fallback)
	}
	if s.Fleets[0].DroppedMoves != 1 {
		t.Fatalf("self-move not counted as dropped")
	}
}

func TestRunFallbackReasons(t *testing.T) {
	down := errors.New("down")
	cases := []struct {
		name string
		fb   *fakeBackend
		want models.FallbackReason
	}{
		{
			name: "all deployments failed",
			fb:   &fakeBackend{deployErr: map[string]error{"fire": down, "police": down}},
			want: models.FallbackBackendFailure,
		},
		{
			name: "quiescent",
			fb:   &fakeBackend{},
			want: models.FallbackNoMoves,
		},
		{
			name: "all routes failed",
			fb: &fakeBackend{
				deployments: map[string]*backend.DeploymentResponse{
					"fire": {
						Stations: []backend.DeploymentStation{station("F1", 47.6, -122.3), station("F2", 47.7, -122.3)},
						Moves:    []backend.DeploymentMove{{FromStationID: "F1", ToStationID: "F2"}},
					},
				},
				routeErr: func(backend.RouteRequest) error { return down },
			},
			want: models.FallbackRoutesFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestOrchestrator(tc.fb).Run(context.Background(), models.ScenarioInput{}, 1)
			if s.Fallback != tc.want {
				t.Fatalf("fallback = %q, want %q", s.Fallback, tc.want)
			}
			if len(s.Trips) != 1 || !IsFallback(s.Trips[0]) || s.Trips[0].HasEndpoints() {
				t.Fatalf("expected a single endpoint-less fallback trip, got %#v", s.Trips)
			}
		})
	}
}

func TestRunTwoFleetsNoMoves(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire":   {Stations: []backend.DeploymentStation{station("F1", 47.60, -122.33)}},
			"police": {Stations: []backend.DeploymentStation{station("P1", 47.61, -122.34)}},
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(s.Stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(s.Stations))
	}
	for _, st := range s.Stations {
		if st.InMove {
			t.Fatalf("station %s should not be in move", st.StationID)
		}
	}
	if s.Fallback != models.FallbackNoMoves || len(s.Trips) != 1 || s.Trips[0].ID != FallbackTripID {
		t.Fatalf("expected fallback for quiescent deployment, got %q %#v", s.Fallback, s.Trips)
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	inputs := []models.StationInput{{StationID: "F1", Lat: 47.6, Lon: -122.3, VehiclesCurrent: 3}}
	input := models.ScenarioInput{Revision: 7, Stations: map[models.FleetType][]models.StationInput{models.FleetFire: inputs}}
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {Stations: []backend.DeploymentStation{{StationID: "F1", Lat: 0, Lon: 0, VehiclesCurrent: 0, VehiclesTarget: 9}}},
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), input, 3)
	if inputs[0].VehiclesCurrent != 3 || inputs[0].Lat != 47.6 {
		t.Fatalf("input mutated: %#v", inputs[0])
	}
	if s.Revision != 7 || s.Generation != 3 || s.ID == "" {
		t.Fatalf("scenario identity not set: %#v", s)
	}
}

func TestFallbackTripIsStable(t *testing.T) {
	a, b := FallbackTrip(), FallbackTrip()
	if a.ID != b.ID || a.ID != FallbackTripID {
		t.Fatalf("fallback id not fixed: %s %s", a.ID, b.ID)
	}
	if err := models.ValidatePath(a.Path); err != nil {
		t.Fatalf("fallback path invalid: %v", err)
	}
	a.Path[0].Lat = 0
	if FallbackTrip().Path[0].Lat == 0 {
		t.Fatalf("fallback path shared between calls")
	}
}

func TestRunCarriesRouteTotalsAndMoveDetail(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{station("F1", 47.60, -122.33), station("F2", 47.62, -122.35)},
				Moves: []backend.DeploymentMove{
					{FromStationID: "F1", ToStationID: "F2", NumVehicles: 2, Distance: 0.028},
					{FromStationID: "F2", ToStationID: "F1"},
				},
			},
		},
		route: func(req backend.RouteRequest) *backend.RouteResponse {
			if req.StartLat != 47.60 {
				return nil
			}
			return &backend.RouteResponse{
				Points: []backend.RoutePoint{
					{Lat: req.StartLat, Lon: req.StartLon, Time: 0},
					{Lat: req.EndLat, Lon: req.EndLon, Time: 180},
				},
				TotalTime:   180,
				TotalLength: 4321,
			}
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if len(s.Trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(s.Trips))
	}

	routed := s.Trips[0]
	if routed.NumVehicles != 2 || routed.MoveDistance != 0.028 {
		t.Fatalf("move detail lost: %#v", routed)
	}
	if routed.RouteLengthMeters != 4321 || routed.DistanceMeters != 4321 || routed.TravelTimeSeconds != 180 {
		t.Fatalf("route totals lost: %#v", routed)
	}

	// No totals from the router: distance falls back to the path length
	plain := s.Trips[1]
	want := spatial.PathLength(spatial.PathPoints(plain.Path))
	if plain.RouteLengthMeters != 0 || plain.TravelTimeSeconds != 0 || plain.DistanceMeters != want {
		t.Fatalf("fallback distance = %v, want %v (%#v)", plain.DistanceMeters, want, plain)
	}
}

func TestRunUnplayableRouteDropsOnlyThatTrip(t *testing.T) {
	fb := &fakeBackend{
		deployments: map[string]*backend.DeploymentResponse{
			"fire": {
				Stations: []backend.DeploymentStation{station("F1", 47.60, -122.33), station("F2", 47.62, -122.35)},
				Moves: []backend.DeploymentMove{
					{FromStationID: "F1", ToStationID: "F2"},
					{FromStationID: "F2", ToStationID: "F1"},
				},
			},
		},
		// Zero-length edges upstream can repeat a vertex time
		route: func(req backend.RouteRequest) *backend.RouteResponse {
			if req.StartLat != 47.60 {
				return nil
			}
			return &backend.RouteResponse{Points: []backend.RoutePoint{
				{Lat: req.StartLat, Lon: req.StartLon, Time: 0},
				{Lat: req.StartLat, Lon: req.StartLon, Time: 0},
				{Lat: req.EndLat, Lon: req.EndLon, Time: 120},
			}}
		},
	}

	s := newTestOrchestrator(fb).Run(context.Background(), models.ScenarioInput{}, 1)
	if s.Fallback != models.FallbackNone {
		t.Fatalf("unexpected fallback %q", s.Fallback)
	}
	if len(s.Trips) != 1 || s.Trips[0].ID != "fire-F2-F1-1" {
		t.Fatalf("unexpected trips %#v", s.Trips)
	}
	if s.Fleets[0].FailedRoutes != 1 {
		t.Fatalf("failed routes = %d", s.Fleets[0].FailedRoutes)
	}
}
