package postgres

import (
	"context"
	"fmt"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// PoolSnapshotStore implements storage.PoolSnapshotStore using PostgreSQL.
type PoolSnapshotStore struct {
	pool *Pool
}

// NewPoolSnapshotStore creates a new PoolSnapshotStore.
func NewPoolSnapshotStore(pool *Pool) *PoolSnapshotStore {
	return &PoolSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolSnapshotStore = (*PoolSnapshotStore)(nil)

// Insert appends a snapshot.
func (s *PoolSnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.Mint == "" || snap.Pool == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_snapshots (
			mint, pool, virtual_sol_reserves, virtual_token_reserves, slot, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Mint,
		snap.Pool,
		int64(snap.VirtualSolReserves),
		int64(snap.VirtualTokenReserves),
		int64(snap.Slot),
		time.UnixMilli(snap.CapturedAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert pool snapshot: %w", err)
	}
	return nil
}

// GetByMint retrieves snapshots for a mint, newest first.
func (s *PoolSnapshotStore) GetByMint(ctx context.Context, mint string, limit int) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT mint, pool, virtual_sol_reserves, virtual_token_reserves, slot,
			(extract(epoch from captured_at) * 1000)::bigint
		FROM pool_snapshots
		WHERE mint = $1
		ORDER BY slot DESC
	`
	args := []interface{}{mint}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get pool snapshots by mint: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PoolSnapshot
	for rows.Next() {
		var (
			snap                     domain.PoolSnapshot
			virtualSol, virtualToken int64
			slot                     int64
		)
		if err := rows.Scan(&snap.Mint, &snap.Pool, &virtualSol, &virtualToken, &slot, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan pool snapshot: %w", err)
		}
		snap.VirtualSolReserves = uint64(virtualSol)
		snap.VirtualTokenReserves = uint64(virtualToken)
		snap.Slot = uint64(slot)
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool snapshots: %w", err)
	}
	return snaps, nil
}
