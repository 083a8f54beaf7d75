package engine

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/sero-sim/scene-engine/internal/layers"
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// RenderList returns the drawables of the visible layers in paint order,
// with vehicles placed at the current clock time
func (e *Engine) RenderList() *geojson.FeatureCollection {
	s := e.Scenario()
	if s == nil {
		return geojson.NewFeatureCollection()
	}
	t := e.clock.Now()
	return e.layers.RenderList(map[string]layers.Source{
		layers.KeyHeatmap:  func() []*geojson.Feature { return layers.CellFeatures(s.Cells) },
		layers.KeyRoutes:   func() []*geojson.Feature { return layers.RouteFeatures(s.Trips) },
		layers.KeyStations: func() []*geojson.Feature { return layers.StationFeatures(s.Stations) },
		layers.KeyVehicles: func() []*geojson.Feature { return layers.VehicleFeatures(s.Trips, t) },
	})
}

// Position is a vehicle location at a simulation time
type Position struct {
	TripID  string  `json:"trip_id"`
	Time    float64 `json:"time"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	Bearing float64 `json:"bearing"`
}

// TripPosition interpolates a trip's position at t
func (e *Engine) TripPosition(id string, t float64) (Position, error) {
	trip, ok := e.Scenario().FindTrip(id)
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrUnknownTrip, id)
	}
	lon, lat := spatial.PositionAt(trip.Path, t)
	return Position{
		TripID:  id,
		Time:    t,
		Lon:     lon,
		Lat:     lat,
		Bearing: layers.Heading(trip.Path, t),
	}, nil
}

// CellAt returns the grid cell containing the point. Cells the risk feed
// did not report have zero risk.
func (e *Engine) CellAt(lat, lon float64) (models.GridCell, error) {
	id, ok := e.grid.CellIDOf(lat, lon)
	if !ok {
		return models.GridCell{}, fmt.Errorf("%w: (%.5f, %.5f)", ErrUnknownCell, lat, lon)
	}
	if c, ok := e.Scenario().FindCell(id); ok {
		return c, nil
	}
	return e.gridCell(id), nil
}

func (e *Engine) gridCell(id int) models.GridCell {
	centerLat, centerLon, _ := e.grid.Centroid(id)
	minLat, maxLat, minLon, maxLon := e.grid.CellBounds(centerLat, centerLon)
	return models.GridCell{
		ID:        fmt.Sprintf("cell-%d", id),
		CellID:    id,
		MinLat:    minLat,
		MaxLat:    maxLat,
		MinLon:    minLon,
		MaxLon:    maxLon,
		CenterLat: centerLat,
		CenterLon: centerLon,
	}
}
