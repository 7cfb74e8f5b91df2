package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// CalibrationLogStore implements storage.CalibrationLogStore using PostgreSQL.
type CalibrationLogStore struct {
	pool *Pool
}

// NewCalibrationLogStore creates a new CalibrationLogStore.
func NewCalibrationLogStore(pool *Pool) *CalibrationLogStore {
	return &CalibrationLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CalibrationLogStore = (*CalibrationLogStore)(nil)

const selectCalibrationRunColumns = `
	SELECT
		run_id, engine_id, created_at_ms, record_count,
		mean_cost_error_bps, liquidity_impact_count, misspecification_count,
		action, multiplier_before, multiplier_after,
		generation_before, generation_after, warnings
	FROM calibration_runs
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *CalibrationLogStore) Insert(ctx context.Context, run *domain.CalibrationRun) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer s.pool.observe("insert_calibration_run", time.Now(), &err)

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO calibration_runs (
			run_id, engine_id, created_at_ms, record_count,
			mean_cost_error_bps, liquidity_impact_count, misspecification_count,
			action, multiplier_before, multiplier_after,
			generation_before, generation_after, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		run.RunID, run.EngineID, run.CreatedAtMs, run.RecordCount,
		run.MeanCostErrorBps, run.LiquidityImpactCount, run.MisspecificationCount,
		run.Action, run.MultiplierBefore, run.MultiplierAfter,
		run.GenerationBefore, run.GenerationAfter, warnings,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert calibration run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *CalibrationLogStore) GetByID(ctx context.Context, runID string) (_ *domain.CalibrationRun, err error) {
	defer s.pool.observe("get_calibration_run", time.Now(), &err)

	row := s.pool.QueryRow(ctx, selectCalibrationRunColumns+` WHERE run_id = $1`, runID)
	run, err := scanCalibrationRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get calibration run by id: %w", err)
	}
	return run, nil
}

// GetByEngine retrieves all runs of an engine, ordered by created_at ASC.
func (s *CalibrationLogStore) GetByEngine(ctx context.Context, engineID string) (_ []*domain.CalibrationRun, err error) {
	defer s.pool.observe("get_calibration_runs_by_engine", time.Now(), &err)

	rows, err := s.pool.Query(ctx, selectCalibrationRunColumns+`
		WHERE engine_id = $1
		ORDER BY created_at_ms ASC, generation_before ASC, run_id ASC
	`, engineID)
	if err != nil {
		return nil, fmt.Errorf("get calibration runs by engine: %w", err)
	}
	defer rows.Close()

	var runs []*domain.CalibrationRun
	for rows.Next() {
		run, err := scanCalibrationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calibration run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration run rows: %w", err)
	}
	return runs, nil
}

func scanCalibrationRun(row pgx.Row) (*domain.CalibrationRun, error) {
	var run domain.CalibrationRun
	if err := row.Scan(
		&run.RunID, &run.EngineID, &run.CreatedAtMs, &run.RecordCount,
		&run.MeanCostErrorBps, &run.LiquidityImpactCount, &run.MisspecificationCount,
		&run.Action, &run.MultiplierBefore, &run.MultiplierAfter,
		&run.GenerationBefore, &run.GenerationAfter, &run.Warnings,
	); err != nil {
		return nil, err
	}
	return &run, nil
}
