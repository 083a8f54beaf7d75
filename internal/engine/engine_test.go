package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sero-sim/scene-engine/internal/backend"
	"github.com/sero-sim/scene-engine/internal/layers"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/publish"
	"github.com/sero-sim/scene-engine/internal/selection"
	"github.com/sero-sim/scene-engine/internal/service"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// scriptedRunner returns a one-trip scenario per generation; generations
// with a gate block until it is closed or their context is cancelled.
type scriptedRunner struct {
	mu        sync.Mutex
	gates     map[int64]chan struct{}
	cancelled map[int64]bool
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{gates: map[int64]chan struct{}{}, cancelled: map[int64]bool{}}
}

func (r *scriptedRunner) Run(ctx context.Context, input models.ScenarioInput, gen int64) *models.Scenario {
	r.mu.Lock()
	gate := r.gates[gen]
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			r.mu.Lock()
			r.cancelled[gen] = true
			r.mu.Unlock()
		}
	}
	return &models.Scenario{
		ID:         fmt.Sprintf("scn-%d", gen),
		Generation: gen,
		Revision:   input.Revision,
		Trips: []models.Trip{{
			ID:            fmt.Sprintf("fire-A-B-%d", gen),
			FleetType:     models.FleetFire,
			FromStationID: "A",
			ToStationID:   "B",
			Path:          []models.TripPoint{{Time: 0, Lon: -122.33, Lat: 47.60}, {Time: float64(gen * 100), Lon: -122.30, Lat: 47.62}},
		}},
	}
}

type memJournal struct {
	mu   sync.Mutex
	runs []models.RunRecord
}

func (j *memJournal) Insert(_ context.Context, run *models.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, *run)
	return nil
}

func TestRefreshDiscardsStaleResult(t *testing.T) {
	runner := newScriptedRunner()
	runner.gates[1] = make(chan struct{})
	journal := &memJournal{}
	e := New(runner, Options{Journal: journal})
	defer e.Teardown()

	type result struct {
		s   *models.Scenario
		err error
	}
	first := make(chan result, 1)
	go func() {
		s, err := e.Refresh(context.Background())
		first <- result{s, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for e.Generation() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s2, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if s2.ID != "scn-2" {
		t.Fatalf("second refresh installed %s", s2.ID)
	}

	r1 := <-first
	if !errors.Is(r1.err, ErrStaleRun) {
		t.Fatalf("first refresh err = %v, want ErrStaleRun", r1.err)
	}
	if got := e.Scenario().ID; got != "scn-2" {
		t.Fatalf("stale result overwrote state: %s", got)
	}
	runner.mu.Lock()
	cancelled := runner.cancelled[1]
	runner.mu.Unlock()
	if !cancelled {
		t.Fatalf("starting a newer refresh should cancel the older one")
	}

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.runs) != 2 {
		t.Fatalf("journal has %d runs, want 2", len(journal.runs))
	}
	staleCount := 0
	for _, r := range journal.runs {
		if r.Stale {
			staleCount++
			if r.ScenarioID != "scn-1" {
				t.Fatalf("wrong run marked stale: %s", r.ScenarioID)
			}
		}
	}
	if staleCount != 1 {
		t.Fatalf("stale runs = %d, want 1", staleCount)
	}
}

func TestRefreshSetsClockBound(t *testing.T) {
	e := New(newScriptedRunner(), Options{})
	defer e.Teardown()

	e.Refresh(context.Background())
	if got := e.Clock().Snapshot().MaxTime; got != 100 {
		t.Fatalf("max time = %v, want 100", got)
	}
	e.Refresh(context.Background())
	if got := e.Clock().Snapshot().MaxTime; got != 200 {
		t.Fatalf("max time = %v, want 200", got)
	}
}

func TestRefreshAfterTeardown(t *testing.T) {
	e := New(newScriptedRunner(), Options{})
	e.Start()
	e.Teardown()
	e.Teardown()

	if _, err := e.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if e.Clock().Snapshot().Ticking {
		t.Fatalf("clock still ticking after teardown")
	}
}

func TestStationEditsAreCopyOnWrite(t *testing.T) {
	e := New(newScriptedRunner(), Options{})
	defer e.Teardown()

	rev, err := e.SetStations(models.FleetFire, []models.StationInput{
		{StationID: "FS1", Lat: 47.60, Lon: -122.33, VehiclesCurrent: 2},
		{StationID: "FS2", Lat: 47.61, Lon: -122.32, VehiclesCurrent: 1},
	})
	if err != nil || rev != 1 {
		t.Fatalf("SetStations = %d, %v", rev, err)
	}

	before := e.Stations()
	n := 5
	updated, rev, err := e.PatchStation(models.FleetFire, "FS2", models.StationPatch{VehiclesCurrent: &n})
	if err != nil {
		t.Fatalf("PatchStation: %v", err)
	}
	if rev != 2 || updated.VehiclesCurrent != 5 {
		t.Fatalf("patch result rev=%d station=%#v", rev, updated)
	}
	if before.Stations[models.FleetFire][1].VehiclesCurrent != 1 {
		t.Fatalf("earlier copy was mutated by a patch")
	}
	if e.Stations().Stations[models.FleetFire][1].VehiclesCurrent != 5 {
		t.Fatalf("patch not applied")
	}

	if _, _, err := e.PatchStation(models.FleetFire, "FS9", models.StationPatch{}); !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("err = %v, want ErrUnknownStation", err)
	}
	if _, err := e.SetStations(models.FleetPolice, []models.StationInput{{StationID: "P"}, {StationID: "P"}}); err == nil {
		t.Fatalf("duplicate ids accepted")
	}
	if e.Stations().Revision != 2 {
		t.Fatalf("rejected edits must not bump the revision")
	}
}

func TestRefreshAsyncUsesLatestInput(t *testing.T) {
	runner := newScriptedRunner()
	e := New(runner, Options{})
	defer e.Teardown()

	e.SetStations(models.FleetFire, []models.StationInput{{StationID: "A"}})
	e.RefreshAsync()
	e.SetStations(models.FleetFire, []models.StationInput{{StationID: "B"}})
	e.RefreshAsync()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := e.Scenario(); s != nil && s.Revision == 2 && s.Generation == e.Generation() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("latest revision never installed: %#v", e.Scenario())
}

// hotLat/hotLon is the center of the one risk cell reported with coordinates
const hotLat, hotLon = 47.605, -122.335

func hotCellID(t *testing.T) int {
	t.Helper()
	id, ok := spatial.CityGrid.CellIDOf(hotLat, hotLon)
	if !ok {
		t.Fatalf("hot cell outside grid")
	}
	return id
}

// fakeOptimizer serves the three backend endpoints from per-fleet scripts
func fakeOptimizer(t *testing.T, deployments map[string]backend.DeploymentResponse) *httptest.Server {
	t.Helper()
	hot := hotCellID(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/risk/latest", func(w http.ResponseWriter, r *http.Request) {
		lat, lon := hotLat, hotLon
		json.NewEncoder(w).Encode([]backend.RiskCell{{CellID: 0, RiskScore: 0.2}, {CellID: hot, RiskScore: 0.9, Lat: &lat, Lon: &lon}})
	})
	mux.HandleFunc("/optimize/deployment", func(w http.ResponseWriter, r *http.Request) {
		var req backend.DeploymentRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp, ok := deployments[req.FleetType]
		if !ok {
			http.Error(w, "no deployment", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/route", func(w http.ResponseWriter, r *http.Request) {
		var req backend.RouteRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(backend.RouteResponse{Points: []backend.RoutePoint{
			{Lat: req.StartLat, Lon: req.StartLon, Time: 0},
			{Lat: (req.StartLat + req.EndLat) / 2, Lon: (req.StartLon + req.EndLon) / 2, Time: 60},
			{Lat: req.EndLat, Lon: req.EndLon, Time: 120},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T, deployments map[string]backend.DeploymentResponse) (*Engine, *publish.Broadcaster) {
	t.Helper()
	srv := fakeOptimizer(t, deployments)
	orch := service.NewOrchestrator(backend.New(srv.URL, time.Second, nil), spatial.CityGrid, nil, 4)
	b := publish.NewBroadcaster()
	e := New(orch, Options{Publisher: b})
	t.Cleanup(e.Teardown)
	return e, b
}

func TestSelfMoveFallsBack(t *testing.T) {
	e, b := newTestEngine(t, map[string]backend.DeploymentResponse{
		"fire": {
			FleetType: "fire",
			Stations:  []backend.DeploymentStation{{StationID: "FS1", Lat: 47.60, Lon: -122.33, VehiclesCurrent: 2, VehiclesTarget: 2}},
			Moves:     []backend.DeploymentMove{{FromStationID: "FS1", ToStationID: "FS1"}},
		},
		"police": {FleetType: "police"},
	})
	e.SetStations(models.FleetFire, []models.StationInput{{StationID: "FS1", Lat: 47.60, Lon: -122.33, VehiclesCurrent: 2}})

	s, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(s.Trips) != 1 || !service.IsFallback(s.Trips[0]) {
		t.Fatalf("trips = %#v, want only the fallback", s.Trips)
	}
	if s.Fallback != models.FallbackRoutesFailed {
		t.Fatalf("fallback reason = %q", s.Fallback)
	}

	snap, ok := b.Latest()
	if !ok {
		t.Fatalf("nothing published")
	}
	if len(snap.Deployment.Moves) != 0 {
		t.Fatalf("fallback trip leaked into moves: %#v", snap.Deployment.Moves)
	}
	if snap.ScenarioID != s.ID {
		t.Fatalf("snapshot not recomputed for new scenario")
	}
}

func TestTwoFleetsWithoutMoves(t *testing.T) {
	e, b := newTestEngine(t, map[string]backend.DeploymentResponse{
		"fire":   {FleetType: "fire", Stations: []backend.DeploymentStation{{StationID: "FS1", Lat: 47.60, Lon: -122.33}}},
		"police": {FleetType: "police", Stations: []backend.DeploymentStation{{StationID: "PS1", Lat: 47.62, Lon: -122.35}}},
	})

	s, err := e.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(s.Stations) != 2 {
		t.Fatalf("stations = %d, want 2", len(s.Stations))
	}
	if len(s.Trips) != 1 || s.Trips[0].ID != service.FallbackTripID || s.Fallback != models.FallbackNoMoves {
		t.Fatalf("trips = %#v, fallback = %q", s.Trips, s.Fallback)
	}

	snap, _ := b.Latest()
	if len(snap.Deployment.MovingStationIDs) != 0 {
		t.Fatalf("moving stations = %v, want none", snap.Deployment.MovingStationIDs)
	}
	if len(snap.Deployment.StationIDs) != 2 || len(snap.Deployment.Moves) != 0 {
		t.Fatalf("deployment = %#v", snap.Deployment)
	}

	sum := e.Summary()
	if !sum.Ready || sum.Stations != 2 || sum.Fallback != models.FallbackNoMoves || sum.Risk.Count != 2 {
		t.Fatalf("summary = %#v", sum)
	}
}

func TestOneFleetFailureKeepsTheOther(t *testing.T) {
	e, _ := newTestEngine(t, map[string]backend.DeploymentResponse{
		"police": {
			FleetType: "police",
			Stations: []backend.DeploymentStation{
				{StationID: "PS1", Lat: 47.60, Lon: -122.33},
				{StationID: "PS2", Lat: 47.65, Lon: -122.30},
			},
			Moves: []backend.DeploymentMove{{FromStationID: "PS1", ToStationID: "PS2", NumVehicles: 1}},
		},
	})

	s, _ := e.Refresh(context.Background())
	for _, st := range s.Stations {
		if st.FleetType != models.FleetPolice {
			t.Fatalf("failed fleet leaked station %#v", st)
		}
	}
	if len(s.Trips) != 1 || s.Trips[0].ID != "police-PS1-PS2-0" || s.Fallback != models.FallbackNone {
		t.Fatalf("trips = %#v", s.Trips)
	}
}

func movingScene(t *testing.T) *Engine {
	e, _ := newTestEngine(t, map[string]backend.DeploymentResponse{
		"fire": {
			FleetType: "fire",
			Stations: []backend.DeploymentStation{
				{StationID: "FS1", Lat: 47.60, Lon: -122.33},
				{StationID: "FS2", Lat: 47.66, Lon: -122.27},
			},
			Moves: []backend.DeploymentMove{{FromStationID: "FS1", ToStationID: "FS2"}},
		},
		"police": {FleetType: "police"},
	})
	if _, err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return e
}

func TestClickHitTesting(t *testing.T) {
	e := movingScene(t)

	// Vehicle halfway along its route at t=60, clear of FS1
	e.Clock().Seek(60)

	// Station within the pick radius
	if st := e.Click(47.6001, -122.3301); st.Kind != selection.KindStation || st.StationID != "FS1" {
		t.Fatalf("station click = %#v", st)
	}

	if st := e.Click(47.63, -122.30); st.Kind != selection.KindTrip || st.TripID != "fire-FS1-FS2-0" {
		t.Fatalf("vehicle click = %#v", st)
	}

	// Reported risk cell, well outside every pick radius
	if st := e.Click(hotLat, hotLon); st.Kind != selection.KindCell || st.CellID == nil || *st.CellID != hotCellID(t) {
		t.Fatalf("cell click = %#v", st)
	}

	// Hidden layers are not interactive
	e.Layers().SetVisible(layers.KeyStations, false)
	if st := e.Click(47.6001, -122.3301); st.Kind == selection.KindStation {
		t.Fatalf("hidden station layer was hit")
	}

	// Nothing there: background click clears
	e.SelectTrip("fire-FS1-FS2-0")
	if st := e.Click(47.72, -122.44); st.Kind != selection.KindNone {
		t.Fatalf("background click = %#v", st)
	}
}

func TestClickFollowsPaintOrder(t *testing.T) {
	e := movingScene(t)

	// At t=0 the vehicle sits on FS1; vehicles paint above stations
	if st := e.Click(47.6001, -122.3301); st.Kind != selection.KindTrip {
		t.Fatalf("default order click = %#v", st)
	}

	// FS1 also lies inside the reported risk cell; heatmap on top wins
	if _, err := e.Layers().Reorder([]string{layers.KeyRoutes, layers.KeyStations, layers.KeyVehicles, layers.KeyHeatmap}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if st := e.Click(47.6001, -122.3301); st.Kind != selection.KindCell || st.CellID == nil || *st.CellID != hotCellID(t) {
		t.Fatalf("heatmap on top click = %#v", st)
	}

	// Stations above vehicles: the station underneath the vehicle wins
	if _, err := e.Layers().Reorder([]string{layers.KeyHeatmap, layers.KeyRoutes, layers.KeyVehicles, layers.KeyStations}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if st := e.Click(47.6001, -122.3301); st.Kind != selection.KindStation || st.StationID != "FS1" {
		t.Fatalf("stations on top click = %#v", st)
	}
}

func TestSelectionAndContext(t *testing.T) {
	e := movingScene(t)

	if _, err := e.SelectTrip("nope"); !errors.Is(err, ErrUnknownTrip) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.SelectCell(-1); !errors.Is(err, ErrUnknownCell) {
		t.Fatalf("err = %v", err)
	}

	if _, err := e.SelectStation("FS2"); err != nil {
		t.Fatalf("SelectStation: %v", err)
	}
	snap := e.Context()
	if snap.SelectedStation == nil || snap.SelectedStation.StationID != "FS2" {
		t.Fatalf("snapshot = %#v", snap)
	}
	if len(snap.Deployment.Moves) != 1 || snap.Deployment.Moves[0].To != "FS2" {
		t.Fatalf("moves = %#v", snap.Deployment.Moves)
	}

	seq := snap.Sequence
	e.SetCamera(models.CameraPose{Lat: 47.50, Lon: -122.40, Zoom: 14})
	snap = e.Context()
	if snap.Sequence <= seq || snap.Map.Zoom != 14 {
		t.Fatalf("camera change not reflected: %#v", snap)
	}
	if snap.SelectedStation == nil {
		t.Fatalf("camera change must not clear the selection")
	}

	e.ClearSelection()
	if e.Context().SelectedStation != nil {
		t.Fatalf("selection survived clear")
	}
}

func TestTripPositionAndCells(t *testing.T) {
	e := movingScene(t)

	pos, err := e.TripPosition("fire-FS1-FS2-0", 60)
	if err != nil {
		t.Fatalf("TripPosition: %v", err)
	}
	if math.Abs(pos.Lat-47.63) > 1e-9 || math.Abs(pos.Lon+122.30) > 1e-9 {
		t.Fatalf("position = %#v", pos)
	}
	if _, err := e.TripPosition("missing", 0); !errors.Is(err, ErrUnknownTrip) {
		t.Fatalf("err = %v", err)
	}

	c, err := e.CellAt(hotLat, hotLon)
	if err != nil || c.CellID != hotCellID(t) || c.Risk != 0.9 {
		t.Fatalf("CellAt = %#v, %v", c, err)
	}
	if _, err := e.CellAt(40, -100); !errors.Is(err, ErrUnknownCell) {
		t.Fatalf("err = %v", err)
	}

	fc := e.RenderList()
	if len(fc.Features) == 0 {
		t.Fatalf("empty render list")
	}
	last := fc.Features[len(fc.Features)-1]
	if last.Properties["layer"] != layers.KeyVehicles {
		t.Fatalf("vehicles should paint last, got %v", last.Properties["layer"])
	}
}
