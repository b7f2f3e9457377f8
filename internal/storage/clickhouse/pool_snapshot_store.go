package clickhouse

import (
	"context"
	"fmt"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// PoolSnapshotStore implements storage.PoolSnapshotStore using ClickHouse.
// MergeTree doesn't enforce uniqueness, which is fine here: snapshots are
// append-only history, never reconciled against.
type PoolSnapshotStore struct {
	conn *Conn
}

// NewPoolSnapshotStore creates a new PoolSnapshotStore.
func NewPoolSnapshotStore(conn *Conn) *PoolSnapshotStore {
	return &PoolSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolSnapshotStore = (*PoolSnapshotStore)(nil)

// Insert appends a snapshot.
func (s *PoolSnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.Mint == "" || snap.Pool == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.PoolSnapshot{snap})
}

// InsertBulk appends multiple snapshots in a single batch.
func (s *PoolSnapshotStore) InsertBulk(ctx context.Context, snaps []*domain.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_snapshots (
			mint, pool, virtual_sol_reserves, virtual_token_reserves, slot, captured_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err = batch.Append(
			snap.Mint, snap.Pool,
			snap.VirtualSolReserves, snap.VirtualTokenReserves,
			snap.Slot, uint64(snap.CapturedAt),
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

// GetByMint retrieves snapshots for a mint, newest first.
func (s *PoolSnapshotStore) GetByMint(ctx context.Context, mint string, limit int) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT mint, pool, virtual_sol_reserves, virtual_token_reserves, slot, captured_at_ms
		FROM pool_snapshots
		WHERE mint = ?
		ORDER BY slot DESC
	`
	args := []any{mint}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pool snapshots by mint: %w", err)
	}
	defer rows.Close()

	return scanPoolSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for a mint within [start, end] unix ms, oldest first.
func (s *PoolSnapshotStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT mint, pool, virtual_sol_reserves, virtual_token_reserves, slot, captured_at_ms
		FROM pool_snapshots
		WHERE mint = ? AND captured_at_ms >= ? AND captured_at_ms <= ?
		ORDER BY captured_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query pool snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanPoolSnapshots(rows)
}

// scanPoolSnapshots scans multiple rows.
func scanPoolSnapshots(rows chRows) ([]*domain.PoolSnapshot, error) {
	var snaps []*domain.PoolSnapshot

	for rows.Next() {
		var snap domain.PoolSnapshot
		var capturedAt uint64

		err := rows.Scan(
			&snap.Mint, &snap.Pool,
			&snap.VirtualSolReserves, &snap.VirtualTokenReserves,
			&snap.Slot, &capturedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool snapshot row: %w", err)
		}

		snap.CapturedAt = int64(capturedAt)
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool snapshot rows: %w", err)
	}

	return snaps, nil
}
