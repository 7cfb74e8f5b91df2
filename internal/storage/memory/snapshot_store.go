package memory

import (
	"context"
	"sort"
	"sync"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketSnapshot // keyed by snapshot_id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.MarketSnapshot),
	}
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(snapshots))

	for _, snap := range snapshots {
		if snap == nil || snap.SnapshotID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[snap.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[snap.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[snap.SnapshotID] = struct{}{}
	}

	for _, snap := range snapshots {
		s.data[snap.SnapshotID] = cloneSnapshot(snap)
	}

	return nil
}

// GetByInstrument retrieves all snapshots for an instrument, ordered by timestamp ASC.
func (s *SnapshotStore) GetByInstrument(_ context.Context, instrumentID string) ([]*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketSnapshot
	for _, snap := range s.data {
		if snap.InstrumentID == instrumentID {
			result = append(result, cloneSnapshot(snap))
		}
	}

	sortSnapshots(result)
	return result, nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketSnapshot
	for _, snap := range s.data {
		if snap.TimestampMs >= start && snap.TimestampMs <= end {
			result = append(result, cloneSnapshot(snap))
		}
	}

	sortSnapshots(result)
	return result, nil
}

func sortSnapshots(snaps []*domain.MarketSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].TimestampMs != snaps[j].TimestampMs {
			return snaps[i].TimestampMs < snaps[j].TimestampMs
		}
		return snaps[i].SnapshotID < snaps[j].SnapshotID
	})
}

// cloneSnapshot copies the snapshot including its optional fields.
func cloneSnapshot(src *domain.MarketSnapshot) *domain.MarketSnapshot {
	dst := *src
	dst.VolatilityBps = clonePtr(src.VolatilityBps)
	dst.TradeSize = clonePtr(src.TradeSize)
	dst.TradeSide = clonePtr(src.TradeSide)
	dst.Trend = clonePtr(src.Trend)
	dst.RealizedCostBps = clonePtr(src.RealizedCostBps)
	dst.Filled = clonePtr(src.Filled)
	return &dst
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
