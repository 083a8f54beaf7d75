package models

import "fmt"

// FleetType identifies one of the emergency-response categories
type FleetType string

// FleetType constants
const (
	FleetFire   FleetType = "fire"
	FleetPolice FleetType = "police"
)

// Fleets lists the fleets in processing order
var Fleets = []FleetType{FleetFire, FleetPolice}

// ParseFleetType validates a fleet name coming from a request path or payload
func ParseFleetType(s string) (FleetType, error) {
	switch FleetType(s) {
	case FleetFire, FleetPolice:
		return FleetType(s), nil
	}
	return "", fmt.Errorf("unknown fleet type %q", s)
}

// StationInput is a caller-supplied station as edited in the station editor
type StationInput struct {
	StationID       string  `json:"station_id" binding:"required"`
	Name            string  `json:"name,omitempty"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	VehiclesCurrent int     `json:"vehicles_current"`
}

// StationPatch carries the optional fields of a single-station edit
type StationPatch struct {
	Name            *string  `json:"name,omitempty"`
	Lat             *float64 `json:"lat,omitempty"`
	Lon             *float64 `json:"lon,omitempty"`
	VehiclesCurrent *int     `json:"vehicles_current,omitempty"`
}

// Apply returns a copy of the station with the patch applied
func (p StationPatch) Apply(s StationInput) StationInput {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Lat != nil {
		s.Lat = *p.Lat
	}
	if p.Lon != nil {
		s.Lon = *p.Lon
	}
	if p.VehiclesCurrent != nil {
		s.VehiclesCurrent = *p.VehiclesCurrent
	}
	return s
}

// ScenarioInput holds the per-fleet station lists that seed one scenario.
// Revision changes whenever any list is replaced; it is the input's identity.
type ScenarioInput struct {
	Revision int64                        `json:"revision"`
	Stations map[FleetType][]StationInput `json:"stations"`
}

// Station is a station as returned by the deployment optimizer
type Station struct {
	StationID       string    `json:"station_id"`
	Name            string    `json:"name,omitempty"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	VehiclesCurrent int       `json:"vehicles_current"`
	VehiclesTarget  int       `json:"vehicles_target"`
	LocalRisk       float64   `json:"local_risk"`
	FleetType       FleetType `json:"fleet_type"`
	InMove          bool      `json:"in_move"` // endpoint of any move in the current deployment
}

// Move is a rebalancing directive from the optimizer
type Move struct {
	FromStationID string    `json:"from_station_id"`
	ToStationID   string    `json:"to_station_id"`
	FleetType     FleetType `json:"fleet_type"`
	NumVehicles   int       `json:"num_vehicles,omitempty"`
	Distance      float64   `json:"distance,omitempty"`
}

// IsSelfMove reports whether both endpoints name the same station
func (m Move) IsSelfMove() bool {
	return m.FromStationID == m.ToStationID
}
