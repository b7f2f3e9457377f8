package feed

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"launchstream/internal/domain"
)

// State names a subscription worker's position in its connect/stream cycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateError
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// SubscriptionConfig configures one logical feed.
type SubscriptionConfig struct {
	// Kind identifies the feed for logs and metrics.
	Kind domain.FeedKind
	// Endpoint is the WebSocket JSON-RPC URL.
	Endpoint string
	// Program is the program ID the feed watches.
	Program string
	// AccountFeed selects programSubscribe; otherwise logsSubscribe mentioning
	// the program.
	AccountFeed bool

	// InitialBackoff is the delay before the first reconnect attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// Client overrides the connection config when non-nil.
	Client *ClientConfig

	// Buffer sizes the typed update channel.
	Buffer int

	// OnStateChange, when set, observes every transition (metrics hook).
	OnStateChange func(kind domain.FeedKind, s State)

	// Logger receives connection lifecycle messages.
	Logger *log.Logger
}

func (c *SubscriptionConfig) withDefaults() SubscriptionConfig {
	out := *c
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = time.Second
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = 30 * time.Second
	}
	if out.Buffer <= 0 {
		out.Buffer = 1024
	}
	if out.Logger == nil {
		out.Logger = log.Default()
	}
	return out
}

// Subscription is a self-healing worker for one logical feed. It owns its
// connection: dial, subscribe, stream, and on any failure back off and start
// over, forever, until the context is cancelled. Feeds never affect each other.
type Subscription struct {
	cfg SubscriptionConfig

	accounts     chan domain.AccountUpdate
	transactions chan domain.TransactionUpdate

	state      atomic.Int32
	reconnects atomic.Uint64

	closeOnce sync.Once
}

// NewSubscription creates a worker for the configured feed. Call Run to start it.
func NewSubscription(cfg SubscriptionConfig) *Subscription {
	c := cfg.withDefaults()
	s := &Subscription{cfg: c}
	if c.AccountFeed {
		s.accounts = make(chan domain.AccountUpdate, c.Buffer)
	} else {
		s.transactions = make(chan domain.TransactionUpdate, c.Buffer)
	}
	return s
}

// Accounts returns the typed update channel for account feeds, nil otherwise.
// The channel closes when Run returns.
func (s *Subscription) Accounts() <-chan domain.AccountUpdate { return s.accounts }

// Transactions returns the typed update channel for log feeds, nil otherwise.
// The channel closes when Run returns.
func (s *Subscription) Transactions() <-chan domain.TransactionUpdate { return s.transactions }

// State returns the worker's current state.
func (s *Subscription) State() State { return State(s.state.Load()) }

// Reconnects returns how many times the worker re-entered the dial cycle.
func (s *Subscription) Reconnects() uint64 { return s.reconnects.Load() }

func (s *Subscription) setState(st State) {
	s.state.Store(int32(st))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(s.cfg.Kind, st)
	}
}

// Run drives the feed until ctx is cancelled. It always returns nil after
// closing the update channel; individual connection failures only log.
func (s *Subscription) Run(ctx context.Context) error {
	defer s.closeOnce.Do(func() {
		s.setState(StateDisconnected)
		if s.accounts != nil {
			close(s.accounts)
		}
		if s.transactions != nil {
			close(s.transactions)
		}
	})

	backoff := s.cfg.InitialBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(StateConnecting)
		client, err := Dial(ctx, s.cfg.Endpoint, s.cfg.Client, s.cfg.Logger)
		if err != nil {
			s.cfg.Logger.Printf("[feed:%s] dial %s: %v", s.cfg.Kind, s.cfg.Endpoint, err)
			if !s.waitBackoff(ctx, &backoff) {
				return nil
			}
			continue
		}

		err = s.stream(ctx, client, &backoff)
		client.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.cfg.Logger.Printf("[feed:%s] stream: %v", s.cfg.Kind, err)
		}
		if !s.waitBackoff(ctx, &backoff) {
			return nil
		}
	}
}

// stream subscribes on a live client and pumps notifications into the typed
// channel until the connection dies or ctx is cancelled. A successful
// subscription resets the backoff.
func (s *Subscription) stream(ctx context.Context, client *Client, backoff *time.Duration) error {
	if s.cfg.AccountFeed {
		ch, err := client.SubscribeProgramAccounts(ctx, s.cfg.Program)
		if err != nil {
			s.setState(StateError)
			return err
		}
		s.setState(StateSubscribed)
		*backoff = s.cfg.InitialBackoff

		for {
			select {
			case <-ctx.Done():
				return nil
			case notif, ok := <-ch:
				if !ok {
					s.setState(StateError)
					return client.Err()
				}
				s.setState(StateStreaming)
				update := domain.AccountUpdate{
					Account: notif.Pubkey,
					Owner:   notif.Owner,
					Slot:    notif.Slot,
					Data:    notif.Data,
				}
				select {
				case s.accounts <- update:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{s.cfg.Program}})
	if err != nil {
		s.setState(StateError)
		return err
	}
	s.setState(StateSubscribed)
	*backoff = s.cfg.InitialBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		case notif, ok := <-ch:
			if !ok {
				s.setState(StateError)
				return client.Err()
			}
			s.setState(StateStreaming)
			update := domain.TransactionUpdate{
				Signature: notif.Signature,
				Slot:      notif.Slot,
				Logs:      notif.Logs,
				Failed:    notif.Err != nil,
			}
			select {
			case s.transactions <- update:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// waitBackoff sleeps the current backoff with jitter, doubles it up to the
// cap, and reports whether the worker should keep going.
func (s *Subscription) waitBackoff(ctx context.Context, backoff *time.Duration) bool {
	s.setState(StateReconnecting)
	s.reconnects.Add(1)

	// 75-125% jitter keeps workers from thundering in lockstep.
	jittered := time.Duration(float64(*backoff) * (0.75 + 0.5*rand.Float64()))

	*backoff *= 2
	if *backoff > s.cfg.MaxBackoff {
		*backoff = s.cfg.MaxBackoff
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(jittered):
		return true
	}
}
