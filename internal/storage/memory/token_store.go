package memory

import (
	"context"
	"sync"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
// It mirrors the conditional-upsert semantics of the PostgreSQL store so
// pipeline tests exercise the same slot-guard behavior.
type TokenStore struct {
	mu   sync.Mutex
	data map[string]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]*domain.Token)}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert applies a token update iff its slot advances the stored latest_slot.
func (s *TokenStore) Upsert(_ context.Context, u *domain.TokenUpdate) (storage.UpsertResult, error) {
	if u == nil || u.Mint == "" {
		return storage.UpsertResult{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	existing, ok := s.data[u.Mint]
	if !ok {
		s.data[u.Mint] = &domain.Token{
			Mint:                       u.Mint,
			Decimals:                   u.Decimals,
			TotalSupply:                u.TotalSupply,
			CurrentProgram:             u.Program,
			GraduatedToAMM:             u.Graduated,
			Progress:                   u.Progress,
			LatestPriceSOL:             u.PriceSOL,
			LatestPriceUSD:             u.PriceUSD,
			LatestMarketCapUSD:         u.MarketCapUSD,
			LatestVirtualSolReserves:   u.VirtualSolReserves,
			LatestVirtualTokenReserves: u.VirtualTokenReserves,
			LatestSlot:                 u.Slot,
			Suspect:                    u.Suspect,
			FirstSeenAt:                now,
			LastUpdatedAt:              now,
		}
		return storage.UpsertResult{Applied: true, Created: true, Graduated: u.Graduated}, nil
	}

	// Stale updates are discarded; at-least-once delivery makes them normal.
	if u.Slot <= existing.LatestSlot {
		return storage.UpsertResult{}, nil
	}

	graduated := !existing.GraduatedToAMM && u.Graduated

	// Graduation never reverts; the program only moves forward.
	existing.GraduatedToAMM = existing.GraduatedToAMM || u.Graduated
	if !existing.GraduatedToAMM || u.Program == domain.ProgramAMMPool {
		existing.CurrentProgram = u.Program
	}
	if existing.GraduatedToAMM {
		existing.CurrentProgram = domain.ProgramAMMPool
	}

	// Progress is monotone non-decreasing.
	if u.Progress > existing.Progress {
		existing.Progress = u.Progress
	}

	if u.Decimals != 0 {
		existing.Decimals = u.Decimals
	}
	if u.TotalSupply != 0 {
		existing.TotalSupply = u.TotalSupply
	}
	existing.LatestPriceSOL = u.PriceSOL
	existing.LatestPriceUSD = u.PriceUSD
	existing.LatestMarketCapUSD = u.MarketCapUSD
	existing.LatestVirtualSolReserves = u.VirtualSolReserves
	existing.LatestVirtualTokenReserves = u.VirtualTokenReserves
	existing.LatestSlot = u.Slot
	existing.Suspect = u.Suspect
	existing.LastUpdatedAt = now

	return storage.UpsertResult{Applied: true, Graduated: graduated}, nil
}

// GetByMint retrieves a token. Returns ErrNotFound if not tracked.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

// Count returns the number of tracked mints.
func (s *TokenStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data)), nil
}
