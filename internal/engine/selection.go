package engine

import (
	"fmt"
	"log"
	"math"

	"github.com/golang/geo/s2"

	"github.com/sero-sim/scene-engine/internal/layers"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/selection"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// SelectTrip selects a trip of the current scenario
func (e *Engine) SelectTrip(id string) (selection.State, error) {
	if _, ok := e.Scenario().FindTrip(id); !ok {
		return selection.State{}, fmt.Errorf("%w: %s", ErrUnknownTrip, id)
	}
	st := e.selection.SelectTrip(id)
	e.recompute()
	return st, nil
}

// SelectStation selects a station of the current scenario
func (e *Engine) SelectStation(id string) (selection.State, error) {
	if _, ok := e.Scenario().FindStation(id); !ok {
		return selection.State{}, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	st := e.selection.SelectStation(id)
	e.recompute()
	return st, nil
}

// SelectCell selects a grid cell by id
func (e *Engine) SelectCell(cellID int) (selection.State, error) {
	if cellID < 0 || cellID >= e.grid.CellCount() {
		return selection.State{}, fmt.Errorf("%w: %d", ErrUnknownCell, cellID)
	}
	st := e.selection.SelectCell(cellID)
	e.recompute()
	return st, nil
}

// ClearSelection drops every selection
func (e *Engine) ClearSelection() selection.State {
	st := e.selection.ClearAll()
	e.recompute()
	return st
}

// Selection returns the current selection
func (e *Engine) Selection() selection.State {
	return e.selection.Selection()
}

// SetCamera records the camera pose and refocuses the snapshot
func (e *Engine) SetCamera(pose models.CameraPose) {
	e.selection.SetCamera(pose)
	e.recompute()
}

// Click hit-tests the point against the visible interactive layers, topmost
// painted layer first: a station or vehicle within the pick radius (vehicles
// at the current clock time) or the risk cell containing the point. Routes
// are not interactive. A miss on every layer is a background click and
// clears the selection.
func (e *Engine) Click(lat, lon float64) selection.State {
	s := e.Scenario()

	var st selection.State
	hit := false
	if s != nil && !math.IsNaN(lat) && !math.IsNaN(lon) {
		keys := e.layers.Visible()
		for i := len(keys) - 1; i >= 0 && !hit; i-- {
			switch keys[i] {
			case layers.KeyStations:
				if id, ok := e.hitStation(s, lat, lon); ok {
					st, hit = e.selection.SelectStation(id), true
				}
			case layers.KeyVehicles:
				if id, ok := e.hitVehicle(s, lat, lon); ok {
					st, hit = e.selection.SelectTrip(id), true
				}
			case layers.KeyHeatmap:
				if id, ok := e.hitCell(s, lat, lon); ok {
					st, hit = e.selection.SelectCell(id), true
				}
			}
		}
	}
	if !hit {
		st = e.selection.ClearAll()
	}

	log.Printf("[Engine] Click at (%.5f, %.5f) -> %q", lat, lon, st.Kind)
	e.recompute()
	return st
}

func (e *Engine) hitStation(s *models.Scenario, lat, lon float64) (string, bool) {
	if len(s.Stations) == 0 {
		return "", false
	}
	points := make([]spatial.Point, len(s.Stations))
	for i, st := range s.Stations {
		points[i] = spatial.Point{Lat: st.Lat, Lon: st.Lon}
	}
	i, d := spatial.NearestIndex(points, lat, lon)
	if i < 0 || d > e.radius {
		return "", false
	}
	return s.Stations[i].StationID, true
}

func (e *Engine) hitVehicle(s *models.Scenario, lat, lon float64) (string, bool) {
	if len(s.Trips) == 0 {
		return "", false
	}
	t := e.clock.Now()
	points := make([]spatial.Point, 0, len(s.Trips))
	ids := make([]string, 0, len(s.Trips))
	for _, trip := range s.Trips {
		if len(trip.Path) == 0 {
			continue
		}
		vLon, vLat := spatial.PositionAt(trip.Path, t)
		points = append(points, spatial.Point{Lat: vLat, Lon: vLon})
		ids = append(ids, trip.ID)
	}
	i, d := spatial.NearestIndex(points, lat, lon)
	if i < 0 || d > e.radius {
		return "", false
	}
	return ids[i], true
}

// hitCell only matches cells the risk feed reported
func (e *Engine) hitCell(s *models.Scenario, lat, lon float64) (int, bool) {
	p := s2.LatLngFromDegrees(lat, lon)
	for _, c := range s.Cells {
		if spatial.CellRect(c.MinLat, c.MaxLat, c.MinLon, c.MaxLon).ContainsLatLng(p) {
			return c.CellID, true
		}
	}
	return 0, false
}

// Context returns the latest published snapshot
func (e *Engine) Context() models.ContextSnapshot {
	e.publishMu.Lock()
	latest := e.latest
	e.publishMu.Unlock()
	if latest != nil {
		return *latest
	}
	return e.recompute()
}

// recompute derives a new snapshot and publishes it. Build and publish are
// serialized so consumers see increasing sequence numbers.
func (e *Engine) recompute() models.ContextSnapshot {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	snap := e.selection.Build(e.Scenario())
	e.latest = &snap
	if e.publisher != nil {
		if err := e.publisher.Publish(e.ctx, snap); err != nil {
			log.Printf("[Engine] Warning: failed to publish snapshot %d: %v", snap.Sequence, err)
		}
	}
	e.metrics.IncSnapshot()
	return snap
}
