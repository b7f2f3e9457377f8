package memory

import (
	"context"
	"sync"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// SolPriceStore is an in-memory implementation of storage.SolPriceStore.
type SolPriceStore struct {
	mu      sync.RWMutex
	samples []domain.SolPriceSample
}

// NewSolPriceStore creates a new in-memory SOL/USD sample store.
func NewSolPriceStore() *SolPriceStore {
	return &SolPriceStore{}
}

// Compile-time interface check.
var _ storage.SolPriceStore = (*SolPriceStore)(nil)

// Insert records a sample.
func (s *SolPriceStore) Insert(_ context.Context, sample *domain.SolPriceSample) error {
	if sample == nil || sample.PriceUSD <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return nil
}

// Latest returns the most recent sample no older than notOlderThan.
func (s *SolPriceStore) Latest(_ context.Context, notOlderThan time.Duration) (*domain.SolPriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-notOlderThan).UnixMilli()
	var latest *domain.SolPriceSample
	for i := range s.samples {
		sample := s.samples[i]
		if sample.Timestamp < cutoff {
			continue
		}
		if latest == nil || sample.Timestamp > latest.Timestamp {
			cp := sample
			latest = &cp
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// DeleteOlderThan prunes samples older than cutoff.
func (s *SolPriceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoffMs := cutoff.UnixMilli()
	kept := s.samples[:0]
	var deleted int64
	for _, sample := range s.samples {
		if sample.Timestamp < cutoffMs {
			deleted++
			continue
		}
		kept = append(kept, sample)
	}
	s.samples = kept
	return deleted, nil
}
