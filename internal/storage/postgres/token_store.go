package postgres

import (
	"context"
	"fmt"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
//
// The slot guard and graduation irreversibility live inside a single
// conditional upsert so that concurrent writers (multiple feed workers and
// multiple process instances) never lose updates or revert a graduation.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert applies a token update iff its slot advances the stored latest_slot.
func (s *TokenStore) Upsert(ctx context.Context, u *domain.TokenUpdate) (storage.UpsertResult, error) {
	if u == nil || u.Mint == "" {
		return storage.UpsertResult{}, storage.ErrInvalidInput
	}

	// The WHERE clause on the conflict action is the slot guard; the OR on
	// graduated_to_amm makes graduation irreversible; GREATEST keeps the
	// bonding-curve progress monotone. Classification reads the row version
	// this statement wrote: xmax is zero only on a fresh insert, and
	// graduated_slot records the slot of the update that flipped the flag,
	// evaluated against the locked pre-image rather than a snapshot. Two
	// writers racing on one mint therefore cannot both report a creation
	// or a graduation.
	query := `
		INSERT INTO tokens (
			mint, decimals, total_supply, current_program, graduated_to_amm,
			graduated_slot, bonding_curve_progress, latest_price_sol,
			latest_price_usd, latest_market_cap_usd, latest_virtual_sol_reserves,
			latest_virtual_token_reserves, latest_slot, suspect,
			first_seen_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (mint) DO UPDATE SET
			decimals = CASE WHEN excluded.decimals = 0 THEN tokens.decimals ELSE excluded.decimals END,
			total_supply = CASE WHEN excluded.total_supply = 0 THEN tokens.total_supply ELSE excluded.total_supply END,
			current_program = CASE
				WHEN tokens.graduated_to_amm OR excluded.graduated_to_amm THEN 'amm_pool'
				ELSE excluded.current_program
			END,
			graduated_to_amm = tokens.graduated_to_amm OR excluded.graduated_to_amm,
			graduated_slot = CASE
				WHEN NOT tokens.graduated_to_amm AND excluded.graduated_to_amm THEN excluded.latest_slot
				ELSE tokens.graduated_slot
			END,
			bonding_curve_progress = GREATEST(tokens.bonding_curve_progress, excluded.bonding_curve_progress),
			latest_price_sol = excluded.latest_price_sol,
			latest_price_usd = excluded.latest_price_usd,
			latest_market_cap_usd = excluded.latest_market_cap_usd,
			latest_virtual_sol_reserves = excluded.latest_virtual_sol_reserves,
			latest_virtual_token_reserves = excluded.latest_virtual_token_reserves,
			latest_slot = excluded.latest_slot,
			suspect = excluded.suspect,
			last_updated_at = now()
		WHERE excluded.latest_slot > tokens.latest_slot
		RETURNING (xmax = 0) AS created, graduated_slot
	`

	var gradSlot int64
	if u.Graduated {
		gradSlot = int64(u.Slot)
	}

	var (
		created        bool
		storedGradSlot int64
	)
	err := s.pool.QueryRow(ctx, query,
		u.Mint,
		int16(u.Decimals),
		int64(u.TotalSupply),
		string(u.Program),
		u.Graduated,
		gradSlot,
		u.Progress,
		u.PriceSOL,
		u.PriceUSD,
		u.MarketCapUSD,
		int64(u.VirtualSolReserves),
		int64(u.VirtualTokenReserves),
		int64(u.Slot),
		u.Suspect,
	).Scan(&created, &storedGradSlot)
	if isNotFoundError(err) {
		// The slot guard rejected the update; nothing was written.
		return storage.UpsertResult{}, nil
	}
	if err != nil {
		return storage.UpsertResult{}, fmt.Errorf("upsert token: %w", err)
	}

	return storage.UpsertResult{
		Applied: true,
		Created: created,
		// The flip happened in this statement only if the stored flip slot
		// is the one this update carried. An already graduated row keeps
		// an older flip slot because the guard forces slots forward.
		Graduated: u.Graduated && storedGradSlot == int64(u.Slot),
	}, nil
}

// GetByMint retrieves a token. Returns ErrNotFound if not tracked.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.Token, error) {
	query := `
		SELECT mint, symbol, name, decimals, total_supply, current_program,
			graduated_to_amm, bonding_curve_progress, latest_price_sol,
			latest_price_usd, latest_market_cap_usd, latest_virtual_sol_reserves,
			latest_virtual_token_reserves, latest_slot, suspect,
			(extract(epoch from first_seen_at) * 1000)::bigint,
			(extract(epoch from last_updated_at) * 1000)::bigint
		FROM tokens
		WHERE mint = $1
	`

	var (
		tok                      domain.Token
		decimals                 int16
		totalSupply              int64
		program                  string
		virtualSol, virtualToken int64
		slot                     int64
	)
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&tok.Mint, &tok.Symbol, &tok.Name, &decimals, &totalSupply, &program,
		&tok.GraduatedToAMM, &tok.Progress, &tok.LatestPriceSOL,
		&tok.LatestPriceUSD, &tok.LatestMarketCapUSD, &virtualSol,
		&virtualToken, &slot, &tok.Suspect,
		&tok.FirstSeenAt, &tok.LastUpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}

	tok.Decimals = uint8(decimals)
	tok.TotalSupply = uint64(totalSupply)
	tok.CurrentProgram = domain.Program(program)
	tok.LatestVirtualSolReserves = uint64(virtualSol)
	tok.LatestVirtualTokenReserves = uint64(virtualToken)
	tok.LatestSlot = uint64(slot)
	return &tok, nil
}

// Count returns the number of tracked mints.
func (s *TokenStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}
