package postgres

import (
	"context"
	"fmt"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// SolPriceStore implements storage.SolPriceStore using PostgreSQL.
type SolPriceStore struct {
	pool *Pool
}

// NewSolPriceStore creates a new SolPriceStore.
func NewSolPriceStore(pool *Pool) *SolPriceStore {
	return &SolPriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SolPriceStore = (*SolPriceStore)(nil)

// Insert records a SOL/USD sample.
func (s *SolPriceStore) Insert(ctx context.Context, sample *domain.SolPriceSample) error {
	if sample == nil || sample.PriceUSD <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sol_price_samples (sampled_at, price_usd)
		VALUES ($1, $2)
		ON CONFLICT (sampled_at) DO UPDATE SET price_usd = excluded.price_usd
	`

	_, err := s.pool.Exec(ctx, query, time.UnixMilli(sample.Timestamp).UTC(), sample.PriceUSD)
	if err != nil {
		return fmt.Errorf("insert sol price sample: %w", err)
	}
	return nil
}

// Latest returns the most recent sample no older than notOlderThan.
func (s *SolPriceStore) Latest(ctx context.Context, notOlderThan time.Duration) (*domain.SolPriceSample, error) {
	query := `
		SELECT (extract(epoch from sampled_at) * 1000)::bigint, price_usd
		FROM sol_price_samples
		WHERE sampled_at >= $1
		ORDER BY sampled_at DESC
		LIMIT 1
	`

	cutoff := time.Now().Add(-notOlderThan).UTC()

	var sample domain.SolPriceSample
	err := s.pool.QueryRow(ctx, query, cutoff).Scan(&sample.Timestamp, &sample.PriceUSD)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest sol price: %w", err)
	}
	return &sample, nil
}

// DeleteOlderThan prunes samples older than cutoff.
func (s *SolPriceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sol_price_samples WHERE sampled_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sol price samples: %w", err)
	}
	return tag.RowsAffected(), nil
}
