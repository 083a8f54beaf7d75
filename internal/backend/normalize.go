package backend

import (
	"fmt"
	"log"
	"math"

	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// NormalizeRiskCells converts the risk feed into grid cells.
// Cell bounds are always derived from the grid step around the reported
// center (or the grid centroid when the feed omits lat/lon). Cells whose id
// falls outside the grid are skipped.
func NormalizeRiskCells(grid *spatial.Grid, in []RiskCell) []models.GridCell {
	cells := make([]models.GridCell, 0, len(in))
	for _, rc := range in {
		lat, lon, ok := grid.Centroid(rc.CellID)
		if !ok {
			log.Printf("[Backend] Warning: risk cell %d outside grid, skipped", rc.CellID)
			continue
		}
		if rc.Lat != nil && rc.Lon != nil {
			lat, lon = *rc.Lat, *rc.Lon
		}

		minLat, maxLat, minLon, maxLon := grid.CellBounds(lat, lon)
		cell := models.GridCell{
			ID:        fmt.Sprintf("cell-%d", rc.CellID),
			CellID:    rc.CellID,
			MinLat:    minLat,
			MaxLat:    maxLat,
			MinLon:    minLon,
			MaxLon:    maxLon,
			CenterLat: lat,
			CenterLon: lon,
			Risk:      clamp01(rc.RiskScore),
		}
		if rc.HighRisk != nil {
			cell.HighRisk = *rc.HighRisk
		}
		if rc.ExpectedIncidents != nil {
			cell.ExpectedIncidents = *rc.ExpectedIncidents
		}
		cells = append(cells, cell)
	}
	return cells
}

// NormalizeDeployment converts an optimizer response into stations and moves.
// InMove is set on every station referenced by any move.
func NormalizeDeployment(fleet models.FleetType, resp *DeploymentResponse) ([]models.Station, []models.Move) {
	moves := make([]models.Move, 0, len(resp.Moves))
	moving := make(map[string]bool, len(resp.Moves)*2)
	for _, m := range resp.Moves {
		moves = append(moves, models.Move{
			FromStationID: m.FromStationID,
			ToStationID:   m.ToStationID,
			FleetType:     fleet,
			NumVehicles:   m.NumVehicles,
			Distance:      m.Distance,
		})
		moving[m.FromStationID] = true
		moving[m.ToStationID] = true
	}

	stations := make([]models.Station, 0, len(resp.Stations))
	for _, s := range resp.Stations {
		name := s.Name
		if name == "" {
			name = s.StationName
		}
		stations = append(stations, models.Station{
			StationID:       s.StationID,
			Name:            name,
			Lat:             s.Lat,
			Lon:             s.Lon,
			VehiclesCurrent: s.VehiclesCurrent,
			VehiclesTarget:  s.VehiclesTarget,
			LocalRisk:       s.LocalRisk,
			FleetType:       fleet,
			InMove:          moving[s.StationID],
		})
	}
	return stations, moves
}

// NormalizeRoute converts a routed polyline into a validated trip path
func NormalizeRoute(resp *RouteResponse) ([]models.TripPoint, error) {
	if resp == nil || len(resp.Points) == 0 {
		return nil, fmt.Errorf("%w: route has no points", models.ErrInvalidPath)
	}
	path := make([]models.TripPoint, len(resp.Points))
	for i, p := range resp.Points {
		path[i] = models.TripPoint{Time: p.Time, Lon: p.Lon, Lat: p.Lat}
	}
	if err := models.ValidatePath(path); err != nil {
		return nil, err
	}
	return path, nil
}

// StationRequests builds the deployment request body from caller inputs
func StationRequests(in []models.StationInput) []StationRequest {
	out := make([]StationRequest, len(in))
	for i, s := range in {
		out[i] = StationRequest{
			StationID:       s.StationID,
			Lat:             s.Lat,
			Lon:             s.Lon,
			VehiclesCurrent: s.VehiclesCurrent,
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
