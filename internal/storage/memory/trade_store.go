package memory

import (
	"context"
	"sort"
	"sync"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by signature
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{data: make(map[string]*domain.Trade)}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Signature == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.Signature] = &cp
	return nil
}

// GetByMint retrieves recent trades for a mint, newest first.
func (s *TradeStore) GetByMint(_ context.Context, mint string, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []*domain.Trade
	for _, t := range s.data {
		if t.Mint == mint {
			cp := *t
			trades = append(trades, &cp)
		}
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Slot != trades[j].Slot {
			return trades[i].Slot > trades[j].Slot
		}
		return trades[i].Signature > trades[j].Signature
	})

	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

// CountBySignature returns how many rows carry the signature (0 or 1).
func (s *TradeStore) CountBySignature(_ context.Context, signature string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.data[signature]; exists {
		return 1, nil
	}
	return 0, nil
}
