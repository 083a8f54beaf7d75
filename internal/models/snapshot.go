package models

import "time"

// MaxSnapshotMoves caps the moves listed in a context snapshot
const MaxSnapshotMoves = 20

// CameraPose is the map camera as last reported by the client
type CameraPose struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Zoom    float64 `json:"zoom"`
	Bearing float64 `json:"bearing"`
	Pitch   float64 `json:"pitch"`
}

// ContextSnapshot is the normalized view state handed to the assistant.
// Each snapshot is a full replacement; consumers must not diff them.
type ContextSnapshot struct {
	ScenarioID  string    `json:"scenario_id,omitempty"`
	Sequence    int64     `json:"sequence"`
	GeneratedAt time.Time `json:"generated_at"`

	Map             CameraPose        `json:"map"`
	FocusedCellID   *int              `json:"focused_cell_id,omitempty"`
	SelectedCellID  *int              `json:"selected_cell_id,omitempty"`
	FocusedCell     *CellContext      `json:"focused_cell,omitempty"`
	SelectedStation *StationContext   `json:"selected_station,omitempty"`
	SelectedTrip    *TripContext      `json:"selected_trip,omitempty"`
	Deployment      DeploymentContext `json:"deployment"`
}

// CellContext is the minimal field set of a cell
type CellContext struct {
	CellID int     `json:"cell_id"`
	Risk   float64 `json:"risk"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// StationContext is the minimal field set of a station
type StationContext struct {
	StationID       string    `json:"station_id"`
	FleetType       FleetType `json:"fleet_type"`
	VehiclesCurrent int       `json:"vehicles_current"`
	VehiclesTarget  int       `json:"vehicles_target"`
	LocalRisk       float64   `json:"local_risk"`
	InMove          bool      `json:"in_move"`
}

// TripContext is the minimal field set of a trip
type TripContext struct {
	ID            string    `json:"id"`
	FleetType     FleetType `json:"fleet_type"`
	FromStationID string    `json:"from_station_id,omitempty"`
	ToStationID   string    `json:"to_station_id,omitempty"`
}

// DeploymentContext summarizes the current deployment
type DeploymentContext struct {
	StationIDs       []string      `json:"station_ids"`
	MovingStationIDs []string      `json:"moving_station_ids"`
	Moves            []MoveContext `json:"moves"`
}

// MoveContext is one active move as seen by the assistant
type MoveContext struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	FleetType FleetType `json:"fleet_type"`
}
