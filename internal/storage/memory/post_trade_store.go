package memory

import (
	"context"
	"sort"
	"sync"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// PostTradeStore is an in-memory implementation of storage.PostTradeStore.
type PostTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PostTradeRecord // keyed by record_id
}

// NewPostTradeStore creates a new in-memory post-trade store.
func NewPostTradeStore() *PostTradeStore {
	return &PostTradeStore{
		data: make(map[string]*domain.PostTradeRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *PostTradeStore) Insert(_ context.Context, r *domain.PostTradeRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RecordID]; exists {
		return storage.ErrDuplicateKey
	}

	recordCopy := *r
	s.data[r.RecordID] = &recordCopy
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *PostTradeStore) InsertBulk(_ context.Context, records []*domain.PostTradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.RecordID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.RecordID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.RecordID] = struct{}{}
	}

	for _, r := range records {
		recordCopy := *r
		s.data[r.RecordID] = &recordCopy
	}

	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *PostTradeStore) GetByID(_ context.Context, recordID string) (*domain.PostTradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[recordID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *PostTradeStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.PostTradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PostTradeRecord
	for _, r := range s.data {
		if r.TimestampMs >= start && r.TimestampMs <= end {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].RecordID < result[j].RecordID
	})

	return result, nil
}

var _ storage.PostTradeStore = (*PostTradeStore)(nil)
