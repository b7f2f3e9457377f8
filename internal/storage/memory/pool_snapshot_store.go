package memory

import (
	"context"
	"sort"
	"sync"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// PoolSnapshotStore is an in-memory implementation of storage.PoolSnapshotStore.
type PoolSnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.PoolSnapshot
}

// NewPoolSnapshotStore creates a new in-memory pool snapshot store.
func NewPoolSnapshotStore() *PoolSnapshotStore {
	return &PoolSnapshotStore{}
}

// Compile-time interface check.
var _ storage.PoolSnapshotStore = (*PoolSnapshotStore)(nil)

// Insert appends a snapshot.
func (s *PoolSnapshotStore) Insert(_ context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.Mint == "" || snap.Pool == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.data = append(s.data, &cp)
	return nil
}

// GetByMint retrieves snapshots for a mint, newest first.
func (s *PoolSnapshotStore) GetByMint(_ context.Context, mint string, limit int) ([]*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []*domain.PoolSnapshot
	for _, snap := range s.data {
		if snap.Mint == mint {
			cp := *snap
			snaps = append(snaps, &cp)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Slot > snaps[j].Slot
	})

	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}
