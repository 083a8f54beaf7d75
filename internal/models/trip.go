package models

import (
	"errors"
	"fmt"
)

// ErrInvalidPath marks a routed path the engine cannot play back
var ErrInvalidPath = errors.New("invalid path")

// TripPoint is one timestamped vertex of a trip path
type TripPoint struct {
	Time float64 `json:"time"` // Seconds from scenario start
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
}

// Trip is the time-indexed path realizing one move
type Trip struct {
	ID          string      `json:"id"`
	FleetType   FleetType   `json:"fleet_type"`
	VehicleKind string      `json:"vehicle_kind"` // engine, patrol_car
	Path        []TripPoint `json:"path"`

	// Endpoints (absent on the synthetic fallback trip)
	FromStationID   string `json:"from_station_id,omitempty"`
	ToStationID     string `json:"to_station_id,omitempty"`
	FromStationName string `json:"from_station_name,omitempty"`
	ToStationName   string `json:"to_station_name,omitempty"`

	NumVehicles int `json:"num_vehicles,omitempty"`

	// DistanceMeters is the routed network length when the router reports
	// one, else the geodesic length of the path
	DistanceMeters    float64 `json:"distance_meters,omitempty"`
	RouteLengthMeters float64 `json:"route_length_meters,omitempty"` // router total_length
	TravelTimeSeconds float64 `json:"travel_time_seconds,omitempty"` // router total_time
	MoveDistance      float64 `json:"move_distance,omitempty"`       // optimizer's move cost, in its own units
}

// HasEndpoints reports whether the trip carries both station ids
func (t Trip) HasEndpoints() bool {
	return t.FromStationID != "" && t.ToStationID != ""
}

// EndTime returns the terminal timestamp of the path
func (t Trip) EndTime() float64 {
	if len(t.Path) == 0 {
		return 0
	}
	return t.Path[len(t.Path)-1].Time
}

// TripID builds the deterministic composite id of a routed move
func TripID(fleet FleetType, from, to string, index int) string {
	return fmt.Sprintf("%s-%s-%s-%d", fleet, from, to, index)
}

// VehicleKindFor maps a fleet to the vehicle drawn for its trips
func VehicleKindFor(fleet FleetType) string {
	switch fleet {
	case FleetFire:
		return "engine"
	case FleetPolice:
		return "patrol_car"
	default:
		return "vehicle"
	}
}

// ValidatePath checks that a path is non-empty and strictly ascending in time
func ValidatePath(path []TripPoint) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for i := 1; i < len(path); i++ {
		if path[i].Time <= path[i-1].Time {
			return fmt.Errorf("%w: time not ascending at index %d (%.3f after %.3f)", ErrInvalidPath, i, path[i].Time, path[i-1].Time)
		}
	}
	return nil
}

// FallbackReason explains why a scenario shows the built-in fallback trip
type FallbackReason string

// FallbackReason constants
const (
	FallbackNone           FallbackReason = ""
	FallbackBackendFailure FallbackReason = "backend_failure" // every deployment fetch failed
	FallbackNoMoves        FallbackReason = "no_moves"        // optimizer recommended nothing
	FallbackRoutesFailed   FallbackReason = "routes_failed"   // moves existed but none produced a trip
)
