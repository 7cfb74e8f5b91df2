package memory

import (
	"context"
	"sort"
	"sync"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// CalibrationLogStore is an in-memory implementation of storage.CalibrationLogStore.
type CalibrationLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CalibrationRun // keyed by run_id
}

// NewCalibrationLogStore creates a new in-memory calibration log.
func NewCalibrationLogStore() *CalibrationLogStore {
	return &CalibrationLogStore{
		data: make(map[string]*domain.CalibrationRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *CalibrationLogStore) Insert(_ context.Context, run *domain.CalibrationRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[run.RunID] = cloneRun(run)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *CalibrationLogStore) GetByID(_ context.Context, runID string) (*domain.CalibrationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRun(run), nil
}

// GetByEngine retrieves all runs of an engine, ordered by created_at ASC.
func (s *CalibrationLogStore) GetByEngine(_ context.Context, engineID string) ([]*domain.CalibrationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CalibrationRun
	for _, run := range s.data {
		if run.EngineID == engineID {
			result = append(result, cloneRun(run))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs < result[j].CreatedAtMs
		}
		return result[i].GenerationBefore < result[j].GenerationBefore
	})

	return result, nil
}

func cloneRun(src *domain.CalibrationRun) *domain.CalibrationRun {
	dst := *src
	dst.Warnings = append([]string(nil), src.Warnings...)
	return &dst
}

var _ storage.CalibrationLogStore = (*CalibrationLogStore)(nil)
