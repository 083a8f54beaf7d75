package selection

import (
	"sync"
	"time"

	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// Kind of the current selection
type Kind string

// Kind constants
const (
	KindNone    Kind = ""
	KindTrip    Kind = "trip"
	KindStation Kind = "station"
	KindCell    Kind = "cell"
)

// State is the current selection. At most one of the ids is set.
type State struct {
	Kind      Kind   `json:"kind,omitempty"`
	TripID    string `json:"trip_id,omitempty"`
	StationID string `json:"station_id,omitempty"`
	CellID    *int   `json:"cell_id,omitempty"`
}

// Aggregator owns the selection identifiers and the camera pose, and derives
// context snapshots from them against the scenario current at build time.
// It never holds on to scenario objects.
type Aggregator struct {
	mu     sync.Mutex
	grid   *spatial.Grid
	state  State
	camera models.CameraPose
	seq    int64
	now    func() time.Time
}

// NewAggregator creates an aggregator with nothing selected
func NewAggregator(grid *spatial.Grid, camera models.CameraPose) *Aggregator {
	return &Aggregator{grid: grid, camera: camera, now: time.Now}
}

// SelectTrip selects a trip and clears the other kinds
func (a *Aggregator) SelectTrip(id string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{Kind: KindTrip, TripID: id}
	return a.state
}

// SelectStation selects a station and clears the other kinds
func (a *Aggregator) SelectStation(id string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{Kind: KindStation, StationID: id}
	return a.state
}

// SelectCell selects a cell and clears the other kinds
func (a *Aggregator) SelectCell(cellID int) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := cellID
	a.state = State{Kind: KindCell, CellID: &id}
	return a.state
}

// ClearAll drops every selection (background click)
func (a *Aggregator) ClearAll() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{}
	return a.state
}

// Selection returns the current selection
func (a *Aggregator) Selection() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyState(a.state)
}

// SetCamera records the camera pose reported by the client
func (a *Aggregator) SetCamera(pose models.CameraPose) {
	a.mu.Lock()
	a.camera = pose
	a.mu.Unlock()
}

// Camera returns the last camera pose
func (a *Aggregator) Camera() models.CameraPose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.camera
}

// Build derives a fresh snapshot from the current selection, camera and
// scenario. Selected ids that no longer resolve are left out.
func (a *Aggregator) Build(scenario *models.Scenario) models.ContextSnapshot {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	state := copyState(a.state)
	camera := a.camera
	now := a.now()
	a.mu.Unlock()

	snap := models.ContextSnapshot{
		Sequence:    seq,
		GeneratedAt: now,
		Map:         camera,
		Deployment:  Deployment(scenario),
	}
	if scenario != nil {
		snap.ScenarioID = scenario.ID
	}

	// Focused cell: the selected one, else the one under the camera center
	if state.CellID != nil {
		id := *state.CellID
		snap.SelectedCellID = &id
		snap.FocusedCellID = &id
	} else if id, ok := a.grid.CellIDOf(camera.Lat, camera.Lon); ok {
		snap.FocusedCellID = &id
	}
	if snap.FocusedCellID != nil {
		snap.FocusedCell = a.cellContext(scenario, *snap.FocusedCellID)
	}

	if state.StationID != "" {
		if st, ok := scenario.FindStation(state.StationID); ok {
			snap.SelectedStation = &models.StationContext{
				StationID:       st.StationID,
				FleetType:       st.FleetType,
				VehiclesCurrent: st.VehiclesCurrent,
				VehiclesTarget:  st.VehiclesTarget,
				LocalRisk:       st.LocalRisk,
				InMove:          st.InMove,
			}
		}
	}
	if state.TripID != "" {
		if tr, ok := scenario.FindTrip(state.TripID); ok {
			snap.SelectedTrip = &models.TripContext{
				ID:            tr.ID,
				FleetType:     tr.FleetType,
				FromStationID: tr.FromStationID,
				ToStationID:   tr.ToStationID,
			}
		}
	}
	return snap
}

// cellContext resolves a cell against the risk grid. A cell the risk feed
// did not report is described by its grid centroid with zero risk.
func (a *Aggregator) cellContext(scenario *models.Scenario, cellID int) *models.CellContext {
	if c, ok := scenario.FindCell(cellID); ok {
		return &models.CellContext{CellID: c.CellID, Risk: c.Risk, Lat: c.CenterLat, Lon: c.CenterLon}
	}
	lat, lon, ok := a.grid.Centroid(cellID)
	if !ok {
		return nil
	}
	return &models.CellContext{CellID: cellID, Lat: lat, Lon: lon}
}

// Deployment summarizes stations and the moves realized by trips. Only
// trips carrying both endpoint ids count as moves, capped at
// models.MaxSnapshotMoves.
func Deployment(scenario *models.Scenario) models.DeploymentContext {
	dep := models.DeploymentContext{
		StationIDs:       []string{},
		MovingStationIDs: []string{},
		Moves:            []models.MoveContext{},
	}
	if scenario == nil {
		return dep
	}
	for _, s := range scenario.Stations {
		dep.StationIDs = append(dep.StationIDs, s.StationID)
		if s.InMove {
			dep.MovingStationIDs = append(dep.MovingStationIDs, s.StationID)
		}
	}
	for _, t := range scenario.Trips {
		if len(dep.Moves) >= models.MaxSnapshotMoves {
			break
		}
		if !t.HasEndpoints() {
			continue
		}
		dep.Moves = append(dep.Moves, models.MoveContext{
			From:      t.FromStationID,
			To:        t.ToStationID,
			FleetType: t.FleetType,
		})
	}
	return dep
}

func copyState(s State) State {
	if s.CellID != nil {
		id := *s.CellID
		s.CellID = &id
	}
	return s
}
