package storage

import (
	"context"
	"time"

	"launchstream/internal/domain"
)

// UpsertResult reports what a conditional token upsert actually did, so the
// reconciler can tell notable transitions apart from plain refreshes.
type UpsertResult struct {
	// Applied is true when the slot guard passed and the row was written.
	// False means the update was stale and discarded.
	Applied bool
	// Created is true when this was the first observation of the mint.
	Created bool
	// Graduated is true when this update flipped graduated_to_amm
	// false -> true. The flip happens at most once per mint.
	Graduated bool
}

// TokenStore provides canonical per-mint state with slot-guarded writes.
type TokenStore interface {
	// Upsert applies a token update iff its slot is greater than the stored
	// latest_slot for the mint. The comparison and write are atomic at the
	// store: concurrent writers for the same mint never lose updates.
	// Graduation is irreversible regardless of the update's flag.
	Upsert(ctx context.Context, u *domain.TokenUpdate) (UpsertResult, error)

	// GetByMint retrieves a token. Returns ErrNotFound if not tracked.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// Count returns the number of tracked mints.
	Count(ctx context.Context) (int64, error)
}

// TradeStore provides append-only trade storage keyed by signature.
type TradeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByMint retrieves recent trades for a mint, newest first.
	GetByMint(ctx context.Context, mint string, limit int) ([]*domain.Trade, error)

	// CountBySignature returns how many rows carry the signature (0 or 1).
	CountBySignature(ctx context.Context, signature string) (int64, error)
}

// PoolSnapshotStore provides append-only AMM reserve history.
type PoolSnapshotStore interface {
	// Insert appends a snapshot. Snapshots are never mutated.
	Insert(ctx context.Context, s *domain.PoolSnapshot) error

	// GetByMint retrieves snapshots for a mint, newest first.
	GetByMint(ctx context.Context, mint string, limit int) ([]*domain.PoolSnapshot, error)
}

// SolPriceStore provides SOL/USD exchange-rate samples with expiry.
type SolPriceStore interface {
	// Insert records a sample.
	Insert(ctx context.Context, sample *domain.SolPriceSample) error

	// Latest returns the most recent sample no older than notOlderThan.
	// Returns ErrNotFound when no fresh sample exists.
	Latest(ctx context.Context, notOlderThan time.Duration) (*domain.SolPriceSample, error)

	// DeleteOlderThan prunes samples older than cutoff, returning the count.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
