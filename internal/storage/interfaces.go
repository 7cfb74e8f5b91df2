package storage

import (
	"context"

	"credit-tca/internal/domain"
)

// SnapshotStore provides access to market_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots atomically. Fails entire batch on duplicate snapshot_id.
	InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error

	// GetByInstrument retrieves all snapshots for an instrument, ordered by timestamp ASC.
	GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.MarketSnapshot, error)

	// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC, snapshot_id ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketSnapshot, error)
}

// PostTradeStore provides access to post_trade_records storage.
type PostTradeStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
	Insert(ctx context.Context, r *domain.PostTradeRecord) error

	// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.PostTradeRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, recordID string) (*domain.PostTradeRecord, error)

	// GetByTimeRange retrieves records within [start, end] (inclusive), ordered by timestamp ASC, record_id ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.PostTradeRecord, error)
}

// CalibrationLogStore provides access to calibration_runs storage.
// It is an audit log: runs are never read back into an engine.
type CalibrationLogStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.CalibrationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.CalibrationRun, error)

	// GetByEngine retrieves all runs of an engine, ordered by created_at ASC.
	GetByEngine(ctx context.Context, engineID string) ([]*domain.CalibrationRun, error)
}
