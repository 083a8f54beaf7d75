package layers

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// Source produces the drawables of one layer
type Source func() []*geojson.Feature

// RenderList concatenates the drawables of the visible layers in paint
// order. A visible layer without a source contributes nothing.
func (m *Manager) RenderList(sources map[string]Source) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, key := range m.Visible() {
		src, ok := sources[key]
		if !ok || src == nil {
			continue
		}
		for _, f := range src() {
			f.Properties["layer"] = key
			fc.Append(f)
		}
	}
	return fc
}

// CellFeatures draws each risk cell as a polygon from its bounds
func CellFeatures(cells []models.GridCell) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(cells))
	for _, c := range cells {
		ring := orb.Ring{
			{c.MinLon, c.MinLat},
			{c.MaxLon, c.MinLat},
			{c.MaxLon, c.MaxLat},
			{c.MinLon, c.MaxLat},
			{c.MinLon, c.MinLat},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.ID = c.ID
		f.Properties["cell_id"] = c.CellID
		f.Properties["risk"] = c.Risk
		if c.HighRisk {
			f.Properties["high_risk"] = true
		}
		out = append(out, f)
	}
	return out
}

// RouteFeatures draws each trip path as a line string
func RouteFeatures(trips []models.Trip) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(trips))
	for _, t := range trips {
		if len(t.Path) == 0 {
			continue
		}
		line := make(orb.LineString, len(t.Path))
		for i, p := range t.Path {
			line[i] = orb.Point{p.Lon, p.Lat}
		}
		f := geojson.NewFeature(line)
		f.ID = t.ID
		f.Properties["trip_id"] = t.ID
		f.Properties["fleet_type"] = string(t.FleetType)
		f.Properties["duration"] = t.EndTime()
		if t.HasEndpoints() {
			f.Properties["from_station_id"] = t.FromStationID
			f.Properties["to_station_id"] = t.ToStationID
		}
		out = append(out, f)
	}
	return out
}

// StationFeatures draws stations as points
func StationFeatures(stations []models.Station) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(stations))
	for _, s := range stations {
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		f.ID = s.StationID
		f.Properties["station_id"] = s.StationID
		f.Properties["name"] = s.Name
		f.Properties["fleet_type"] = string(s.FleetType)
		f.Properties["vehicles_current"] = s.VehiclesCurrent
		f.Properties["vehicles_target"] = s.VehiclesTarget
		f.Properties["in_move"] = s.InMove
		out = append(out, f)
	}
	return out
}

// VehicleFeatures draws one marker per trip at simulation time t, with the
// heading of travel so the client can rotate the icon.
func VehicleFeatures(trips []models.Trip, t float64) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(trips))
	for _, trip := range trips {
		if len(trip.Path) == 0 {
			continue
		}
		lon, lat := spatial.PositionAt(trip.Path, t)
		f := geojson.NewFeature(orb.Point{lon, lat})
		f.ID = trip.ID
		f.Properties["trip_id"] = trip.ID
		f.Properties["fleet_type"] = string(trip.FleetType)
		f.Properties["vehicle_kind"] = trip.VehicleKind
		f.Properties["bearing"] = Heading(trip.Path, t)
		out = append(out, f)
	}
	return out
}

// Heading returns the direction of travel in degrees at time t. Parked
// vehicles (single-point path, or t past the end) keep the heading of the
// last segment; a single point has heading 0.
func Heading(path []models.TripPoint, t float64) float64 {
	if len(path) < 2 {
		return 0
	}
	first, last := path[0].Time, path[len(path)-1].Time
	if t < first {
		t = first
	}
	if t >= last {
		a, b := path[len(path)-2], path[len(path)-1]
		return spatial.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		if t >= a.Time && t <= b.Time {
			return spatial.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
		}
	}
	return 0
}
