package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// PostTradeStore implements storage.PostTradeStore using PostgreSQL.
type PostTradeStore struct {
	pool *Pool
}

// NewPostTradeStore creates a new PostTradeStore.
func NewPostTradeStore(pool *Pool) *PostTradeStore {
	return &PostTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PostTradeStore = (*PostTradeStore)(nil)

const insertPostTradeQuery = `
	INSERT INTO post_trade_records (
		record_id, instrument_id, timestamp_ms,
		predicted_cost_bps, realized_cost_bps, reversion_bps
	) VALUES ($1, $2, $3, $4, $5, $6)
`

const selectPostTradeColumns = `
	SELECT
		record_id, instrument_id, timestamp_ms,
		predicted_cost_bps, realized_cost_bps, reversion_bps
	FROM post_trade_records
`

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *PostTradeStore) Insert(ctx context.Context, r *domain.PostTradeRecord) (err error) {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}
	defer s.pool.observe("insert_post_trade", time.Now(), &err)

	_, err = s.pool.Exec(ctx, insertPostTradeQuery,
		r.RecordID, r.InstrumentID, r.TimestampMs,
		r.PredictedCostBps, r.RealizedCostBps, r.ReversionBps,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert post-trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *PostTradeStore) InsertBulk(ctx context.Context, records []*domain.PostTradeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer s.pool.observe("insert_post_trade_bulk", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertPostTradeQuery,
			r.RecordID, r.InstrumentID, r.TimestampMs,
			r.PredictedCostBps, r.RealizedCostBps, r.ReversionBps,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert post-trade record in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *PostTradeStore) GetByID(ctx context.Context, recordID string) (_ *domain.PostTradeRecord, err error) {
	defer s.pool.observe("get_post_trade", time.Now(), &err)

	row := s.pool.QueryRow(ctx, selectPostTradeColumns+` WHERE record_id = $1`, recordID)
	r, err := scanPostTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get post-trade record by id: %w", err)
	}
	return r, nil
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *PostTradeStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.PostTradeRecord, err error) {
	defer s.pool.observe("get_post_trades_by_time", time.Now(), &err)

	rows, err := s.pool.Query(ctx, selectPostTradeColumns+`
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, record_id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get post-trade records by time range: %w", err)
	}
	defer rows.Close()

	var records []*domain.PostTradeRecord
	for rows.Next() {
		r, err := scanPostTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post-trade row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post-trade rows: %w", err)
	}
	return records, nil
}

func scanPostTrade(row pgx.Row) (*domain.PostTradeRecord, error) {
	var r domain.PostTradeRecord
	if err := row.Scan(
		&r.RecordID, &r.InstrumentID, &r.TimestampMs,
		&r.PredictedCostBps, &r.RealizedCostBps, &r.ReversionBps,
	); err != nil {
		return nil, err
	}
	return &r, nil
}
