// Package ingest runs the decode, price and reconcile pipeline over the feed
// update channels and fans notable transitions out to subscribers.
package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"launchstream/internal/decode"
	"launchstream/internal/domain"
	"launchstream/internal/observability"
	"launchstream/internal/pricing"
	"launchstream/internal/reconcile"
	"launchstream/internal/storage"
)

// Launch-protocol mints share a fixed shape: 6 decimals, one billion tokens.
// Used until a stored token row provides authoritative values.
const (
	defaultDecimals    = 6
	defaultTotalSupply = 1_000_000_000 * 1_000_000 // base units
)

// Broadcaster pushes an event to live subscribers. Implemented by the
// broadcast hub.
type Broadcaster interface {
	Broadcast(evt *domain.Event)
}

// EventSink publishes an event to a secondary destination. Implemented by
// the Kafka sink.
type EventSink interface {
	Publish(ctx context.Context, evt *domain.Event)
}

// Feeds carries the update channels the pipeline consumes. A nil channel
// disables that feed's worker.
type Feeds struct {
	CurveTrades <-chan domain.TransactionUpdate
	AmmPools    <-chan domain.AccountUpdate
	AmmTrades   <-chan domain.TransactionUpdate
}

// Options configures a Pipeline.
type Options struct {
	Feeds      Feeds
	Reconciler *reconcile.Reconciler
	Calculator *pricing.Calculator

	// Tokens is read to recover decimals and supply for mints already
	// tracked. May be the same store the reconciler writes.
	Tokens storage.TokenStore

	// Broadcaster and Sink are optional event destinations.
	Broadcaster Broadcaster
	Sink        EventSink

	// Metrics may be nil; recording is then skipped.
	Metrics *observability.Metrics

	Logger *log.Logger
}

// Pipeline runs one worker per feed. Workers share no mutable state apart
// from the stores, which serialize conflicting writes themselves, so they
// never coordinate with each other.
type Pipeline struct {
	feeds   Feeds
	rec     *reconcile.Reconciler
	calc    *pricing.Calculator
	tokens  storage.TokenStore
	hub     Broadcaster
	sink    EventSink
	metrics *observability.Metrics
	logger  *log.Logger

	// malformedLog keeps a burst of malformed inputs from flooding the log.
	malformedLog *rate.Limiter
	highestSlot  atomic.Uint64
}

// New creates a Pipeline. Reconciler and Calculator are required.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		feeds:        opts.Feeds,
		rec:          opts.Reconciler,
		calc:         opts.Calculator,
		tokens:       opts.Tokens,
		hub:          opts.Broadcaster,
		sink:         opts.Sink,
		metrics:      opts.Metrics,
		logger:       logger,
		malformedLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// HighestSlot returns the highest slot observed across all feeds.
func (p *Pipeline) HighestSlot() uint64 {
	return p.highestSlot.Load()
}

// Run consumes the feed channels until all of them close. The feeds close
// their channels when their own contexts are cancelled, so cancelling the
// feeds and then waiting on Run drains every buffered update before it
// returns. Store and fan-out calls use a context detached from ctx so the
// drain is not cut short by the shutdown signal itself.
func (p *Pipeline) Run(ctx context.Context) error {
	opCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup

	if p.feeds.CurveTrades != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range p.feeds.CurveTrades {
				p.handleTransaction(opCtx, domain.FeedCurveTrades, u)
			}
		}()
	}

	if p.feeds.AmmTrades != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range p.feeds.AmmTrades {
				p.handleTransaction(opCtx, domain.FeedAMMTrades, u)
			}
		}()
	}

	if p.feeds.AmmPools != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range p.feeds.AmmPools {
				p.handleAccount(opCtx, domain.FeedAMMPools, u)
			}
		}()
	}

	wg.Wait()
	p.logger.Println("[ingest] all feed channels closed, pipeline stopped")
	return nil
}

// handleTransaction decodes every program event carried in a transaction's
// logs and applies each one. Events are routed by discriminator, not by
// feed, so a feed delivering an unexpected event type still lands correctly.
func (p *Pipeline) handleTransaction(ctx context.Context, feed domain.FeedKind, u domain.TransactionUpdate) {
	p.observeUpdate(feed, u.Slot)

	if u.Failed {
		return
	}

	events := decode.ExtractEventData(u.Logs)
	for _, data := range events {
		res := decode.DecodeEvent(data)
		switch res.Kind {
		case decode.KindSkip:
			p.countDecode(feed, "skipped")
		case decode.KindMalformed:
			p.countDecode(feed, "malformed")
			p.logMalformed(feed, u.Signature, res.Reason)
		case decode.KindDecoded:
			p.countDecode(feed, "decoded")
			switch ev := res.Value.(type) {
			case *decode.CurveTradeEvent:
				p.applyCurveTrade(ctx, u, ev)
			case *decode.CurveCompleteEvent:
				p.applyCurveComplete(ctx, u, ev)
			case *decode.AmmTradeEvent:
				p.applyAmmTrade(ctx, feed, u, ev)
			}
		}
	}

	// Log truncation can drop the emitted payloads entirely. When the
	// transport parsed structured instructions, recover the swap from them.
	if len(events) == 0 {
		for _, call := range u.Instructions {
			resolved, err := decode.ResolveSwapInstruction(call)
			if err != nil {
				p.countDecode(feed, "skipped")
				continue
			}
			p.countDecode(feed, "decoded")
			p.applySwapInstruction(ctx, u, resolved)
		}
	}
}

// handleAccount decodes an account update. Only AMM pool accounts produce
// state; other tracked account types carry no mint and are counted as
// skipped.
func (p *Pipeline) handleAccount(ctx context.Context, feed domain.FeedKind, u domain.AccountUpdate) {
	p.observeUpdate(feed, u.Slot)

	res := decode.DecodeAccount(u.Data)
	switch res.Kind {
	case decode.KindSkip:
		p.countDecode(feed, "skipped")
	case decode.KindMalformed:
		p.countDecode(feed, "malformed")
		p.logMalformed(feed, u.Account, res.Reason)
	case decode.KindDecoded:
		if pool, ok := res.Value.(*decode.AmmPoolAccount); ok {
			p.countDecode(feed, "decoded")
			p.applyPoolAccount(ctx, u, pool)
		} else {
			p.countDecode(feed, "skipped")
		}
	}
}

// applyCurveTrade records a bonding-curve trade and refreshes the token's
// derived state from the emitted reserves.
func (p *Pipeline) applyCurveTrade(ctx context.Context, u domain.TransactionUpdate, ev *decode.CurveTradeEvent) {
	decimals, supply := p.lookupShape(ctx, ev.Mint)
	quote := p.calc.Quote(ctx, ev.VirtualSolReserves, ev.VirtualTokenReserves, decimals, supply)
	now := time.Now().UnixMilli()

	side := domain.TradeSideSell
	if ev.IsBuy {
		side = domain.TradeSideBuy
	}

	trade := &domain.Trade{
		Signature:    u.Signature,
		Mint:         ev.Mint,
		Program:      domain.ProgramBondingCurve,
		Side:         side,
		SolAmount:    ev.SolAmount,
		TokenAmount:  ev.TokenAmount,
		PriceSOL:     quote.PriceSOL,
		PriceUSD:     quote.PriceUSD,
		MarketCapUSD: quote.MarketCapUSD,
		Slot:         u.Slot,
		BlockTime:    blockTime(u, ev.Timestamp, now),
	}

	update := &domain.TokenUpdate{
		Mint:                 ev.Mint,
		Decimals:             decimals,
		TotalSupply:          supply,
		Program:              domain.ProgramBondingCurve,
		Progress:             p.calc.Progress(ev.RealSolReserves),
		PriceSOL:             quote.PriceSOL,
		PriceUSD:             quote.PriceUSD,
		MarketCapUSD:         quote.MarketCapUSD,
		VirtualSolReserves:   ev.VirtualSolReserves,
		VirtualTokenReserves: ev.VirtualTokenReserves,
		Slot:                 u.Slot,
		Suspect:              quote.Suspect,
		ObservedAt:           now,
	}

	out, err := p.rec.Apply(ctx, trade, update)
	if err != nil {
		p.logger.Printf("[ingest] apply curve trade %s: %v", u.Signature, err)
		return
	}
	p.fanOut(ctx, out, trade, update, now)
}

// applyCurveComplete flips the token to the AMM on the explicit completion
// emission. Reserve and price fields stay empty; the next pool account
// update fills them.
func (p *Pipeline) applyCurveComplete(ctx context.Context, u domain.TransactionUpdate, ev *decode.CurveCompleteEvent) {
	now := time.Now().UnixMilli()
	update := &domain.TokenUpdate{
		Mint:       ev.Mint,
		Program:    domain.ProgramAMMPool,
		Graduated:  pricing.DetectGraduation(true, domain.ProgramBondingCurve),
		Progress:   100,
		Slot:       u.Slot,
		ObservedAt: now,
	}

	out, err := p.rec.Apply(ctx, nil, update)
	if err != nil {
		p.logger.Printf("[ingest] apply curve completion %s: %v", ev.Mint, err)
		return
	}
	p.fanOut(ctx, out, nil, update, now)
}

// applyAmmTrade records an AMM swap normalized to the traded token's
// perspective. Any AMM trade marks the mint graduated; for a mint still
// tracked under the bonding curve this is the implicit graduation signal.
func (p *Pipeline) applyAmmTrade(ctx context.Context, feed domain.FeedKind, u domain.TransactionUpdate, ev *decode.AmmTradeEvent) {
	resolved, err := decode.ResolveAmmTrade(ev)
	if err != nil {
		p.countDecode(feed, "skipped")
		p.logMalformed(feed, u.Signature, err.Error())
		return
	}

	solReserves, tokenReserves := ev.PoolQuoteReserves, ev.PoolBaseReserves
	if resolved.Inverted {
		solReserves, tokenReserves = ev.PoolBaseReserves, ev.PoolQuoteReserves
	}

	decimals, supply := p.lookupShape(ctx, resolved.Mint)
	quote := p.calc.Quote(ctx, solReserves, tokenReserves, decimals, supply)
	now := time.Now().UnixMilli()

	trade := &domain.Trade{
		Signature:    u.Signature,
		Mint:         resolved.Mint,
		Program:      domain.ProgramAMMPool,
		Side:         resolved.Side,
		SolAmount:    resolved.SolAmount,
		TokenAmount:  resolved.TokenAmount,
		PriceSOL:     quote.PriceSOL,
		PriceUSD:     quote.PriceUSD,
		MarketCapUSD: quote.MarketCapUSD,
		Slot:         u.Slot,
		BlockTime:    blockTime(u, ev.Timestamp, now),
	}

	update := &domain.TokenUpdate{
		Mint:                 resolved.Mint,
		Decimals:             decimals,
		TotalSupply:          supply,
		Program:              domain.ProgramAMMPool,
		Graduated:            pricing.DetectGraduation(false, domain.ProgramAMMPool),
		Progress:             100,
		PriceSOL:             quote.PriceSOL,
		PriceUSD:             quote.PriceUSD,
		MarketCapUSD:         quote.MarketCapUSD,
		VirtualSolReserves:   solReserves,
		VirtualTokenReserves: tokenReserves,
		Slot:                 u.Slot,
		Suspect:              quote.Suspect,
		ObservedAt:           now,
	}

	out, err := p.rec.Apply(ctx, trade, update)
	if err != nil {
		p.logger.Printf("[ingest] apply amm trade %s: %v", u.Signature, err)
		return
	}
	p.fanOut(ctx, out, trade, update, now)
}

// applySwapInstruction records an AMM swap recovered from a structured
// instruction call. Instructions carry no pool reserves, so price fields
// stay undefined until the next event or pool snapshot fills them.
func (p *Pipeline) applySwapInstruction(ctx context.Context, u domain.TransactionUpdate, resolved *decode.ResolvedSwap) {
	decimals, supply := p.lookupShape(ctx, resolved.Mint)
	now := time.Now().UnixMilli()

	trade := &domain.Trade{
		Signature:   u.Signature,
		Mint:        resolved.Mint,
		Program:     domain.ProgramAMMPool,
		Side:        resolved.Side,
		SolAmount:   resolved.SolAmount,
		TokenAmount: resolved.TokenAmount,
		Slot:        u.Slot,
		BlockTime:   blockTime(u, 0, now),
	}

	update := &domain.TokenUpdate{
		Mint:        resolved.Mint,
		Decimals:    decimals,
		TotalSupply: supply,
		Program:     domain.ProgramAMMPool,
		Graduated:   pricing.DetectGraduation(false, domain.ProgramAMMPool),
		Progress:    100,
		Slot:        u.Slot,
		ObservedAt:  now,
	}

	out, err := p.rec.Apply(ctx, trade, update)
	if err != nil {
		p.logger.Printf("[ingest] apply swap instruction %s: %v", u.Signature, err)
		return
	}
	p.fanOut(ctx, out, trade, update, now)
}

// applyPoolAccount appends reserve history and refreshes the token's derived
// state from the pool's current reserves.
func (p *Pipeline) applyPoolAccount(ctx context.Context, u domain.AccountUpdate, pool *decode.AmmPoolAccount) {
	now := time.Now().UnixMilli()

	snap := &domain.PoolSnapshot{
		Mint:                 pool.BaseMint,
		Pool:                 u.Account,
		VirtualSolReserves:   pool.QuoteReserves,
		VirtualTokenReserves: pool.BaseReserves,
		Slot:                 u.Slot,
		CapturedAt:           now,
	}
	if err := p.rec.RecordSnapshot(ctx, snap); err != nil {
		p.logger.Printf("[ingest] record pool snapshot %s: %v", pool.BaseMint, err)
	} else if p.metrics != nil {
		p.metrics.SnapshotsStored.Inc()
	}

	decimals, supply := p.lookupShape(ctx, pool.BaseMint)
	quote := p.calc.Quote(ctx, pool.QuoteReserves, pool.BaseReserves, decimals, supply)

	update := &domain.TokenUpdate{
		Mint:                 pool.BaseMint,
		Decimals:             decimals,
		TotalSupply:          supply,
		Program:              domain.ProgramAMMPool,
		Graduated:            true,
		Progress:             100,
		PriceSOL:             quote.PriceSOL,
		PriceUSD:             quote.PriceUSD,
		MarketCapUSD:         quote.MarketCapUSD,
		VirtualSolReserves:   pool.QuoteReserves,
		VirtualTokenReserves: pool.BaseReserves,
		Slot:                 u.Slot,
		Suspect:              quote.Suspect,
		ObservedAt:           now,
	}

	out, err := p.rec.Apply(ctx, nil, update)
	if err != nil {
		p.logger.Printf("[ingest] apply pool account %s: %v", pool.BaseMint, err)
		return
	}
	p.fanOut(ctx, out, nil, update, now)
}

// fanOut publishes the notable transitions an applied observation caused and
// records the reconcile counters. Plain refreshes broadcast nothing.
func (p *Pipeline) fanOut(ctx context.Context, out reconcile.Outcome, trade *domain.Trade, update *domain.TokenUpdate, now int64) {
	if p.metrics != nil {
		if trade != nil {
			if out.TradeRecorded {
				p.metrics.TradesStored.Inc()
			} else {
				p.metrics.DuplicateTrades.Inc()
			}
		}
		if update != nil && !out.Applied {
			p.metrics.StaleUpdates.Inc()
		}
		if out.NewToken {
			p.metrics.NewTokens.Inc()
		}
		if out.Graduated {
			p.metrics.Graduations.Inc()
		}
	}

	if out.NewToken && update != nil {
		payload := domain.NewTokenEventPayload{
			Mint:    update.Mint,
			Program: update.Program,
			Slot:    update.Slot,
		}
		if update.Program == domain.ProgramBondingCurve {
			if curve, err := decode.DeriveBondingCurveAddress(update.Mint); err == nil {
				payload.Curve = curve
			}
		}
		p.publish(ctx, &domain.Event{Type: domain.EventKindNewToken, Data: payload, Timestamp: now})
	}

	if out.TradeRecorded && trade != nil {
		p.publish(ctx, &domain.Event{
			Type: domain.EventKindTrade,
			Data: domain.TradeEventPayload{
				Signature:    trade.Signature,
				Mint:         trade.Mint,
				Program:      trade.Program,
				Side:         trade.Side,
				SolAmount:    trade.SolAmount,
				TokenAmount:  trade.TokenAmount,
				PriceSOL:     trade.PriceSOL,
				PriceUSD:     trade.PriceUSD,
				MarketCapUSD: trade.MarketCapUSD,
				Slot:         trade.Slot,
			},
			Timestamp: now,
		})
	}

	if out.Graduated && update != nil {
		p.publish(ctx, &domain.Event{
			Type:      domain.EventKindGraduation,
			Data:      domain.GraduationEventPayload{Mint: update.Mint, Slot: update.Slot},
			Timestamp: now,
		})
	}
}

func (p *Pipeline) publish(ctx context.Context, evt *domain.Event) {
	if p.hub != nil {
		p.hub.Broadcast(evt)
	}
	if p.sink != nil {
		p.sink.Publish(ctx, evt)
	}
	if p.metrics != nil {
		p.metrics.EventsBroadcast.WithLabelValues(string(evt.Type)).Inc()
	}
}

// lookupShape recovers a mint's decimals and total supply from the token
// store, falling back to the protocol's fixed shape for untracked mints.
func (p *Pipeline) lookupShape(ctx context.Context, mint string) (uint8, uint64) {
	if p.tokens != nil {
		tok, err := p.tokens.GetByMint(ctx, mint)
		if err == nil && tok.Decimals > 0 && tok.TotalSupply > 0 {
			return tok.Decimals, tok.TotalSupply
		}
	}
	return defaultDecimals, defaultTotalSupply
}

func (p *Pipeline) observeUpdate(feed domain.FeedKind, slot uint64) {
	for {
		highest := p.highestSlot.Load()
		if slot <= highest {
			break
		}
		if p.highestSlot.CompareAndSwap(highest, slot) {
			break
		}
	}

	if p.metrics != nil {
		p.metrics.UpdatesReceived.WithLabelValues(string(feed)).Inc()
		p.metrics.HighestSlotSeen.Set(float64(p.highestSlot.Load()))
	}
}

func (p *Pipeline) countDecode(feed domain.FeedKind, result string) {
	if p.metrics != nil {
		p.metrics.DecodeResults.WithLabelValues(string(feed), result).Inc()
	}
}

func (p *Pipeline) logMalformed(feed domain.FeedKind, ref, reason string) {
	if p.malformedLog.Allow() {
		p.logger.Printf("[ingest] %s: undecodable input (%s): %s", feed, ref, reason)
	}
}

// blockTime picks the trade's wall-clock time: the transaction's block time
// when known, then the on-chain event timestamp, then receipt time.
func blockTime(u domain.TransactionUpdate, eventUnixSec int64, nowMs int64) int64 {
	if u.BlockTime > 0 {
		return u.BlockTime
	}
	if eventUnixSec > 0 {
		return eventUnixSec * 1000
	}
	return nowMs
}
