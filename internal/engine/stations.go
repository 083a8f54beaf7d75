package engine

import (
	"fmt"
	"log"

	"github.com/sero-sim/scene-engine/internal/models"
)

// Stations returns a copy of the current station input
func (e *Engine) Stations() models.ScenarioInput {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()

	out := models.ScenarioInput{
		Revision: e.input.Revision,
		Stations: make(map[models.FleetType][]models.StationInput, len(e.input.Stations)),
	}
	for fleet, list := range e.input.Stations {
		cp := make([]models.StationInput, len(list))
		copy(cp, list)
		out.Stations[fleet] = cp
	}
	return out
}

// SetStations replaces the input list of one fleet and bumps the revision.
// Station ids must be non-empty and unique within the fleet.
func (e *Engine) SetStations(fleet models.FleetType, list []models.StationInput) (int64, error) {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if s.StationID == "" {
			return 0, fmt.Errorf("station without id in fleet %s", fleet)
		}
		if seen[s.StationID] {
			return 0, fmt.Errorf("duplicate station id %q in fleet %s", s.StationID, fleet)
		}
		seen[s.StationID] = true
	}

	cp := make([]models.StationInput, len(list))
	copy(cp, list)

	e.inputMu.Lock()
	defer e.inputMu.Unlock()
	e.replaceFleetLocked(fleet, cp)
	log.Printf("[Engine] Replaced %d %s stations (revision=%d)", len(cp), fleet, e.input.Revision)
	return e.input.Revision, nil
}

// PatchStation edits one station of a fleet. The fleet's list is copied,
// never modified in place, so lists handed out earlier stay valid.
func (e *Engine) PatchStation(fleet models.FleetType, id string, patch models.StationPatch) (models.StationInput, int64, error) {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()

	current := e.input.Stations[fleet]
	idx := -1
	for i, s := range current {
		if s.StationID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.StationInput{}, 0, fmt.Errorf("%w: %s/%s", ErrUnknownStation, fleet, id)
	}

	next := make([]models.StationInput, len(current))
	copy(next, current)
	next[idx] = patch.Apply(next[idx])

	e.replaceFleetLocked(fleet, next)
	return next[idx], e.input.Revision, nil
}

// replaceFleetLocked installs a new map so earlier copies are unaffected
func (e *Engine) replaceFleetLocked(fleet models.FleetType, list []models.StationInput) {
	stations := make(map[models.FleetType][]models.StationInput, len(e.input.Stations)+1)
	for f, l := range e.input.Stations {
		stations[f] = l
	}
	stations[fleet] = list
	e.input = models.ScenarioInput{
		Revision: e.input.Revision + 1,
		Stations: stations,
	}
}
