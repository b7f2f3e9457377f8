package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

// Outcome reports which notable transitions a reconciled observation caused,
// so the caller broadcasts only what actually changed.
type Outcome struct {
	// NewToken is true when the mint was observed for the first time.
	NewToken bool
	// TradeRecorded is true when the trade row was inserted (not a replay).
	TradeRecorded bool
	// Graduated is true when this observation flipped the token to the AMM.
	Graduated bool
	// Applied is true when the token state advanced (slot guard passed).
	Applied bool
}

// Options configures the reconciler.
type Options struct {
	// RetryAttempts is how many times a failed store call is retried before
	// the error surfaces. Duplicate and stale outcomes are not errors.
	RetryAttempts int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// Logger for retry warnings. Defaults to log.Default().
	Logger *log.Logger
}

// Reconciler applies decoded observations to the stores. All ordering and
// idempotence guarantees live in the stores; the reconciler classifies
// outcomes and absorbs transient persistence failures.
type Reconciler struct {
	tokens    storage.TokenStore
	trades    storage.TradeStore
	snapshots storage.PoolSnapshotStore

	retryAttempts int
	retryDelay    time.Duration
	logger        *log.Logger
}

// New creates a Reconciler. The snapshot store may be nil when reserve
// history is not collected.
func New(tokens storage.TokenStore, trades storage.TradeStore, snapshots storage.PoolSnapshotStore, opts *Options) *Reconciler {
	r := &Reconciler{
		tokens:        tokens,
		trades:        trades,
		snapshots:     snapshots,
		retryAttempts: 3,
		retryDelay:    250 * time.Millisecond,
		logger:        log.Default(),
	}
	if opts != nil {
		if opts.RetryAttempts > 0 {
			r.retryAttempts = opts.RetryAttempts
		}
		if opts.RetryDelay > 0 {
			r.retryDelay = opts.RetryDelay
		}
		if opts.Logger != nil {
			r.logger = opts.Logger
		}
	}
	return r
}

// ApplyTrade inserts a trade. A replayed signature is a silent no-op and
// reports recorded=false.
func (r *Reconciler) ApplyTrade(ctx context.Context, t *domain.Trade) (bool, error) {
	err := r.retry(ctx, "insert trade", func() error {
		err := r.trades.Insert(ctx, t)
		if errors.Is(err, storage.ErrDuplicateKey) {
			return err // not transient, stop retrying
		}
		return err
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply trade %s: %w", t.Signature, err)
	}
	return true, nil
}

// ApplyTokenUpdate applies a slot-guarded conditional upsert. Stale updates
// are discarded by the store and reported as not applied.
func (r *Reconciler) ApplyTokenUpdate(ctx context.Context, u *domain.TokenUpdate) (storage.UpsertResult, error) {
	var res storage.UpsertResult
	err := r.retry(ctx, "upsert token", func() error {
		var err error
		res, err = r.tokens.Upsert(ctx, u)
		return err
	})
	if err != nil {
		return storage.UpsertResult{}, fmt.Errorf("apply token update %s: %w", u.Mint, err)
	}
	return res, nil
}

// RecordSnapshot appends AMM reserve history. Best effort: a nil snapshot
// store makes it a no-op.
func (r *Reconciler) RecordSnapshot(ctx context.Context, snap *domain.PoolSnapshot) error {
	if r.snapshots == nil {
		return nil
	}
	if err := r.retry(ctx, "insert pool snapshot", func() error {
		return r.snapshots.Insert(ctx, snap)
	}); err != nil {
		return fmt.Errorf("record snapshot %s: %w", snap.Mint, err)
	}
	return nil
}

// Apply reconciles one observation: the trade (when present) and the derived
// token state. The returned Outcome drives event fan-out.
func (r *Reconciler) Apply(ctx context.Context, trade *domain.Trade, update *domain.TokenUpdate) (Outcome, error) {
	var out Outcome

	if trade != nil {
		recorded, err := r.ApplyTrade(ctx, trade)
		if err != nil {
			return out, err
		}
		out.TradeRecorded = recorded
	}

	if update != nil {
		res, err := r.ApplyTokenUpdate(ctx, update)
		if err != nil {
			return out, err
		}
		out.NewToken = res.Created
		out.Graduated = res.Graduated
		out.Applied = res.Applied
	}

	return out, nil
}

// retry runs op up to the attempt budget, backing off between failures.
// Duplicate-key errors pass through untouched for the caller to classify.
func (r *Reconciler) retry(ctx context.Context, what string, op func() error) error {
	var err error
	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		err = op()
		if err == nil || errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, storage.ErrInvalidInput) {
			return err
		}
		if attempt < r.retryAttempts {
			r.logger.Printf("[reconcile] %s failed (attempt %d/%d): %v", what, attempt, r.retryAttempts, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}
	return err
}
