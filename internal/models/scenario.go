package models

import "time"

// Scenario is one complete load of stations, deployment and routes.
// It is replaced wholesale on re-fetch; readers must not mutate it.
type Scenario struct {
	ID         string         `json:"id"`
	Generation int64          `json:"generation"`
	Revision   int64          `json:"revision"` // ScenarioInput revision it was built from
	Cells      []GridCell     `json:"cells"`
	Stations   []Station      `json:"stations"`
	Trips      []Trip         `json:"trips"`
	Fallback   FallbackReason `json:"fallback,omitempty"`
	Fleets     []FleetOutcome `json:"fleets"`
	RiskOK     bool           `json:"risk_ok"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Duration   time.Duration  `json:"duration"`
}

// FleetOutcome records what one fleet contributed to a scenario
type FleetOutcome struct {
	FleetType     FleetType `json:"fleet_type"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	Stations      int       `json:"stations"`
	Moves         int       `json:"moves"`
	DroppedMoves  int       `json:"dropped_moves"`
	FailedRoutes  int       `json:"failed_routes"`
	Trips         int       `json:"trips"`
	TotalTravel   float64   `json:"total_travel_cost"`
}

// MaxTime returns the largest terminal timestamp across all trips
func (s *Scenario) MaxTime() float64 {
	if s == nil {
		return 0
	}
	var maxTime float64
	for _, t := range s.Trips {
		if end := t.EndTime(); end > maxTime {
			maxTime = end
		}
	}
	return maxTime
}

// FindTrip resolves a trip id against the current list
func (s *Scenario) FindTrip(id string) (Trip, bool) {
	if s == nil {
		return Trip{}, false
	}
	for _, t := range s.Trips {
		if t.ID == id {
			return t, true
		}
	}
	return Trip{}, false
}

// FindStation resolves a station id against the current list
func (s *Scenario) FindStation(id string) (Station, bool) {
	if s == nil {
		return Station{}, false
	}
	for _, st := range s.Stations {
		if st.StationID == id {
			return st, true
		}
	}
	return Station{}, false
}

// FindCell resolves a cell id against the current grid
func (s *Scenario) FindCell(cellID int) (GridCell, bool) {
	if s == nil {
		return GridCell{}, false
	}
	for _, c := range s.Cells {
		if c.CellID == cellID {
			return c, true
		}
	}
	return GridCell{}, false
}

// RunRecord is one row of the orchestration run journal
type RunRecord struct {
	ID         int64          `json:"id" db:"id"`
	ScenarioID string         `json:"scenario_id" db:"scenario_id"`
	Generation int64          `json:"generation" db:"generation"`
	Revision   int64          `json:"revision" db:"revision"`
	Stale      bool           `json:"stale" db:"stale"`
	RiskOK     bool           `json:"risk_ok" db:"risk_ok"`
	CellCount  int            `json:"cell_count" db:"cell_count"`
	Stations   int            `json:"stations" db:"stations"`
	Trips      int            `json:"trips" db:"trips"`
	Fallback   FallbackReason `json:"fallback,omitempty" db:"fallback"`
	FleetsJSON string         `json:"fleets_json" db:"fleets_json"`
	DurationMS int64          `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// RunFilter represents filter parameters for querying the run journal
type RunFilter struct {
	Fallback string `form:"fallback"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
