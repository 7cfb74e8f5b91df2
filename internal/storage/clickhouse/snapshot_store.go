package clickhouse

import (
	"context"
	"fmt"
	"time"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const selectSnapshotColumns = `
	SELECT
		snapshot_id, instrument_id, timestamp_ms, bid, ask, spread_bps, available_size,
		volatility_bps, risk_tier, trade_size, trade_side, trend, realized_cost_bps, filled
	FROM market_snapshots FINAL
`

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate snapshot_id.
// MergeTree does not enforce uniqueness, so duplicates are checked before the insert.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}

	ids := make([]string, 0, len(snapshots))
	seen := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.SnapshotID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[snap.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[snap.SnapshotID] = struct{}{}
		ids = append(ids, snap.SnapshotID)
	}
	defer s.conn.observe("insert_snapshots", time.Now(), &err)

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM market_snapshots WHERE has(?, snapshot_id)`, ids).Scan(&count); err != nil {
		return fmt.Errorf("check existing snapshots: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_snapshots (
			snapshot_id, instrument_id, timestamp_ms, bid, ask, spread_bps, available_size,
			volatility_bps, risk_tier, trade_size, trade_side, trend, realized_cost_bps, filled
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		var side *string
		if snap.TradeSide != nil {
			v := snap.TradeSide.String()
			side = &v
		}
		var filled *uint8
		if snap.Filled != nil {
			var v uint8
			if *snap.Filled {
				v = 1
			}
			filled = &v
		}
		err = batch.Append(
			snap.SnapshotID, snap.InstrumentID, snap.TimestampMs,
			snap.Bid, snap.Ask, snap.SpreadBps, snap.AvailableSize,
			snap.VolatilityBps, snap.RiskTier, snap.TradeSize, side,
			snap.Trend, snap.RealizedCostBps, filled,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByInstrument retrieves all snapshots for an instrument, ordered by timestamp ASC.
func (s *SnapshotStore) GetByInstrument(ctx context.Context, instrumentID string) (_ []*domain.MarketSnapshot, err error) {
	defer s.conn.observe("get_snapshots_by_instrument", time.Now(), &err)

	rows, err := s.conn.Query(ctx, selectSnapshotColumns+`
		WHERE instrument_id = ?
		ORDER BY timestamp_ms ASC, snapshot_id ASC
	`, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("query by instrument: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.MarketSnapshot, err error) {
	defer s.conn.observe("get_snapshots_by_time", time.Now(), &err)

	rows, err := s.conn.Query(ctx, selectSnapshotColumns+`
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, snapshot_id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows chRows) ([]*domain.MarketSnapshot, error) {
	var snapshots []*domain.MarketSnapshot

	for rows.Next() {
		var (
			snap   domain.MarketSnapshot
			side   *string
			filled *uint8
		)
		err := rows.Scan(
			&snap.SnapshotID, &snap.InstrumentID, &snap.TimestampMs,
			&snap.Bid, &snap.Ask, &snap.SpreadBps, &snap.AvailableSize,
			&snap.VolatilityBps, &snap.RiskTier, &snap.TradeSize, &side,
			&snap.Trend, &snap.RealizedCostBps, &filled,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if side != nil {
			parsed, err := domain.ParseSide(*side)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.SnapshotID, err)
			}
			snap.TradeSide = &parsed
		}
		if filled != nil {
			v := *filled == 1
			snap.Filled = &v
		}
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshots, nil
}
