package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sero-sim/scene-engine/internal/models"
)

// RunRepository handles database operations for the orchestration run journal
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordFromScenario flattens a scenario into a journal row
func RecordFromScenario(s *models.Scenario, stale bool) (*models.RunRecord, error) {
	fleets, err := json.Marshal(s.Fleets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fleet outcomes: %w", err)
	}
	return &models.RunRecord{
		ScenarioID: s.ID,
		Generation: s.Generation,
		Revision:   s.Revision,
		Stale:      stale,
		RiskOK:     s.RiskOK,
		CellCount:  len(s.Cells),
		Stations:   len(s.Stations),
		Trips:      len(s.Trips),
		Fallback:   s.Fallback,
		FleetsJSON: string(fleets),
		DurationMS: s.Duration.Milliseconds(),
		CreatedAt:  s.FetchedAt,
	}, nil
}

// Insert appends a run to the journal
func (r *RunRepository) Insert(ctx context.Context, run *models.RunRecord) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO runs (
			scenario_id, generation, revision, stale, risk_ok, cell_count,
			stations, trips, fallback, fleets_json, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ScenarioID,
		run.Generation,
		run.Revision,
		run.Stale,
		run.RiskOK,
		run.CellCount,
		run.Stations,
		run.Trips,
		string(run.Fallback),
		run.FleetsJSON,
		run.DurationMS,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// List returns runs newest first, with the total matching count
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.RunRecord, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Fallback != "" {
		if filter.Fallback == "none" {
			conditions = append(conditions, "fallback = ''")
		} else {
			conditions = append(conditions, "fallback = ?")
			args = append(args, filter.Fallback)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	// Add pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := `SELECT id, scenario_id, generation, revision, stale, risk_ok, cell_count,
		stations, trips, fallback, fleets_json, duration_ms, created_at
		FROM runs` + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunRecord{}
	for rows.Next() {
		var run models.RunRecord
		var fallback string
		err := rows.Scan(
			&run.ID, &run.ScenarioID, &run.Generation, &run.Revision, &run.Stale,
			&run.RiskOK, &run.CellCount, &run.Stations, &run.Trips, &fallback,
			&run.FleetsJSON, &run.DurationMS, &run.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Fallback = models.FallbackReason(fallback)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, total, nil
}
