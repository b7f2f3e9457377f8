package postgres

import (
	"context"
	"fmt"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.Signature == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			signature, mint, program, side, sol_amount, token_amount,
			price_sol, price_usd, market_cap_usd, slot, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (signature) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.Mint,
		string(t.Program),
		string(t.Side),
		int64(t.SolAmount),
		int64(t.TokenAmount),
		t.PriceSOL,
		t.PriceUSD,
		t.MarketCapUSD,
		int64(t.Slot),
		t.BlockTime,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByMint retrieves recent trades for a mint, newest first.
func (s *TradeStore) GetByMint(ctx context.Context, mint string, limit int) ([]*domain.Trade, error) {
	query := `
		SELECT signature, mint, program, side, sol_amount, token_amount,
			price_sol, price_usd, market_cap_usd, slot, block_time
		FROM trades
		WHERE mint = $1
		ORDER BY slot DESC, signature DESC
	`
	args := []interface{}{mint}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var (
			t                      domain.Trade
			program, side          string
			solAmount, tokenAmount int64
			slot                   int64
		)
		if err := rows.Scan(
			&t.Signature, &t.Mint, &program, &side, &solAmount, &tokenAmount,
			&t.PriceSOL, &t.PriceUSD, &t.MarketCapUSD, &slot, &t.BlockTime,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Program = domain.Program(program)
		t.Side = domain.TradeSide(side)
		t.SolAmount = uint64(solAmount)
		t.TokenAmount = uint64(tokenAmount)
		t.Slot = uint64(slot)
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// CountBySignature returns how many rows carry the signature (0 or 1).
func (s *TradeStore) CountBySignature(ctx context.Context, signature string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trades WHERE signature = $1`, signature).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trades by signature: %w", err)
	}
	return n, nil
}
