// Package solusd keeps a rolling window of SOL/USD exchange-rate samples
// fresh by polling the Binance klines REST API.
package solusd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

const (
	defaultBaseURL  = "https://api.binance.com"
	defaultSymbol   = "SOLUSDT"
	defaultInterval = "1m"
)

// Options configures the sampler.
type Options struct {
	// BaseURL overrides the Binance API host (tests point it at a stub).
	BaseURL string
	// Symbol is the trading pair sampled. Defaults to SOLUSDT.
	Symbol string
	// PollInterval is how often a fresh sample is fetched.
	PollInterval time.Duration
	// Retention is the rolling window; samples older than it are pruned.
	Retention time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	// Logger for fetch failures. Defaults to log.Default().
	Logger *log.Logger
	// OnSample observes every stored sample (metrics hook).
	OnSample func(priceUSD float64)
	// OnError observes every failed fetch (metrics hook).
	OnError func()
}

// Sampler polls the exchange rate and persists SolPriceSample rows. It is a
// constructed service: Start launches the loop, Stop waits for it to finish.
type Sampler struct {
	store storage.SolPriceStore

	baseURL      string
	symbol       string
	pollInterval time.Duration
	retention    time.Duration
	client       *http.Client
	logger       *log.Logger
	onSample     func(float64)
	onError      func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSampler creates a sampler writing to store.
func NewSampler(store storage.SolPriceStore, opts *Options) *Sampler {
	s := &Sampler{
		store:        store,
		baseURL:      defaultBaseURL,
		symbol:       defaultSymbol,
		pollInterval: time.Minute,
		retention:    24 * time.Hour,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       log.Default(),
	}
	if opts != nil {
		if opts.BaseURL != "" {
			s.baseURL = opts.BaseURL
		}
		if opts.Symbol != "" {
			s.symbol = opts.Symbol
		}
		if opts.PollInterval > 0 {
			s.pollInterval = opts.PollInterval
		}
		if opts.Retention > 0 {
			s.retention = opts.Retention
		}
		if opts.HTTPClient != nil {
			s.client = opts.HTTPClient
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
		s.onSample = opts.OnSample
		s.onError = opts.OnError
	}
	return s
}

// Start launches the polling loop. The first sample is fetched immediately so
// USD conversion works as soon as possible after boot.
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sampleOnce(ctx)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	price, err := s.fetchClose(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("[solusd] fetch %s: %v", s.symbol, err)
		if s.onError != nil {
			s.onError()
		}
		return
	}

	now := time.Now()
	sample := &domain.SolPriceSample{Timestamp: now.UnixMilli(), PriceUSD: price}
	if err := s.store.Insert(ctx, sample); err != nil {
		s.logger.Printf("[solusd] store sample: %v", err)
		return
	}
	if s.onSample != nil {
		s.onSample(price)
	}

	if _, err := s.store.DeleteOlderThan(ctx, now.Add(-s.retention)); err != nil {
		s.logger.Printf("[solusd] prune samples: %v", err)
	}
}

// fetchClose returns the close price of the most recent 1-minute candle.
func (s *Sampler) fetchClose(ctx context.Context) (float64, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return 0, fmt.Errorf("parse base url: %w", err)
	}
	u.Path = "/api/v3/klines"
	q := u.Query()
	q.Set("symbol", s.symbol)
	q.Set("interval", defaultInterval)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("http %d", resp.StatusCode)
	}

	// Binance returns array-of-arrays; index 4 is "close".
	var data [][]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode klines: %w", err)
	}
	if len(data) == 0 || len(data[0]) < 5 {
		return 0, errors.New("no kline returned")
	}

	switch v := data[0][4].(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	default:
		return 0, errors.New("unexpected close type")
	}
}
