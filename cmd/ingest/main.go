// Package main runs the live ingestion daemon: three stream feeds, the
// decode/price/reconcile pipeline, the subscriber WebSocket server and the
// Prometheus endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"launchstream/internal/broadcast"
	"launchstream/internal/config"
	"launchstream/internal/decode"
	"launchstream/internal/domain"
	"launchstream/internal/feed"
	"launchstream/internal/ingest"
	"launchstream/internal/observability"
	"launchstream/internal/pricing"
	"launchstream/internal/reconcile"
	"launchstream/internal/sink"
	"launchstream/internal/solusd"
	"launchstream/internal/storage"
	chstore "launchstream/internal/storage/clickhouse"
	"launchstream/internal/storage/memory"
	"launchstream/internal/storage/migrations"
	pgstore "launchstream/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	// Flags override the environment.
	wsEndpoint := flag.String("ws-endpoint", cfg.RPCWebSocketURL, "Blockchain WebSocket JSON-RPC endpoint")
	curveProgram := flag.String("curve-program", cfg.CurveProgram, "Bonding-curve program ID (defaults to the known launch program)")
	ammProgram := flag.String("amm-program", cfg.AmmProgram, "AMM program ID (defaults to the known graduated-pool program)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty disables snapshot history offload)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "Subscriber WebSocket server address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsListenAddr, "Prometheus metrics HTTP address (empty to disable)")
	kafkaBrokers := flag.String("kafka-brokers", strings.Join(cfg.KafkaBrokers, ","), "Comma-separated Kafka brokers (empty disables the sink)")
	kafkaTopic := flag.String("kafka-topic", cfg.KafkaTopic, "Kafka topic for event fan-out")
	solPriceInterval := flag.Duration("sol-price-interval", cfg.SolPriceInterval, "SOL/USD sampling interval")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal starts a graceful drain; a second one, or a stuck drain,
	// forces exit.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, runConfig{
		wsEndpoint:        *wsEndpoint,
		curveProgram:      *curveProgram,
		ammProgram:        *ammProgram,
		postgresDSN:       *postgresDSN,
		clickhouseDSN:     *clickhouseDSN,
		useMemory:         *useMemory,
		listenAddr:        *listenAddr,
		metricsAddr:       *metricsAddr,
		kafkaBrokers:      splitBrokers(*kafkaBrokers),
		kafkaTopic:        *kafkaTopic,
		solPriceInterval:  *solPriceInterval,
		solPriceTTL:       cfg.SolPriceTTL,
		binanceBaseURL:    cfg.BinanceBaseURL,
		feedDownThreshold: cfg.FeedDownThreshold,
	}, logger)

	close(done)
	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

type runConfig struct {
	wsEndpoint        string
	curveProgram      string
	ammProgram        string
	postgresDSN       string
	clickhouseDSN     string
	useMemory         bool
	listenAddr        string
	metricsAddr       string
	kafkaBrokers      []string
	kafkaTopic        string
	solPriceInterval  time.Duration
	solPriceTTL       time.Duration
	binanceBaseURL    string
	feedDownThreshold time.Duration
}

func run(ctx context.Context, cfg runConfig, logger *log.Logger) error {
	if cfg.wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !cfg.useMemory && cfg.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	curveProgram := cfg.curveProgram
	if curveProgram == "" {
		curveProgram = decode.CurveProgram
	}
	ammProgram := cfg.ammProgram
	if ammProgram == "" {
		ammProgram = decode.AMMProgram
	}

	metrics := observability.NewMetrics("launchstream")

	// Stores.
	var (
		tokenStore    storage.TokenStore        = memory.NewTokenStore()
		tradeStore    storage.TradeStore        = memory.NewTradeStore()
		snapshotStore storage.PoolSnapshotStore = memory.NewPoolSnapshotStore()
		solPriceStore storage.SolPriceStore     = memory.NewSolPriceStore()
	)

	if !cfg.useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		tokenStore = pgstore.NewTokenStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		snapshotStore = pgstore.NewPoolSnapshotStore(pool)
		solPriceStore = pgstore.NewSolPriceStore(pool)
	}

	// Reserve history offloads to ClickHouse when configured; the relational
	// store keeps serving everything else.
	if cfg.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		snapshotStore = chstore.NewPoolSnapshotStore(conn)
		logger.Println("Pool snapshot history -> ClickHouse")
	}

	// SOL/USD sampler.
	var lastSampleMs atomic.Int64
	sampler := solusd.NewSampler(solPriceStore, &solusd.Options{
		BaseURL:      cfg.binanceBaseURL,
		PollInterval: cfg.solPriceInterval,
		Retention:    cfg.solPriceTTL,
		Logger:       logger,
		OnSample: func(priceUSD float64) {
			lastSampleMs.Store(time.Now().UnixMilli())
			metrics.SolPriceUSD.Set(priceUSD)
		},
		OnError: func() { metrics.SolPriceFetchErrs.Inc() },
	})
	sampler.Start(ctx)
	defer sampler.Stop()

	go trackSampleAge(ctx, &lastSampleMs, metrics)

	calc := pricing.NewCalculator(pricing.DefaultConfig(), solPriceStore)
	rec := reconcile.New(tokenStore, tradeStore, snapshotStore, &reconcile.Options{Logger: logger})

	// Broadcast hub and subscriber server.
	hub := broadcast.NewHub(&broadcast.HubOptions{
		Logger:        logger,
		OnClientCount: func(n int) { metrics.ConnectedClients.Set(float64(n)) },
		OnDroppedSend: func() { metrics.DroppedClients.Inc() },
	})
	go hub.Run(ctx)

	wsServer := &http.Server{Addr: cfg.listenAddr, Handler: wsMux(hub)}
	go func() {
		logger.Printf("Subscriber WebSocket server on %s", cfg.listenAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("WebSocket server error: %v", err)
		}
	}()
	defer shutdownServer(wsServer, logger)

	if cfg.metricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.metricsAddr, Handler: metricsMux()}
		go func() {
			logger.Printf("Metrics server on %s", cfg.metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
		defer shutdownServer(metricsServer, logger)
	}

	// Optional Kafka sink.
	kafkaSink := sink.NewKafkaSink(sink.KafkaOptions{
		Brokers: cfg.kafkaBrokers,
		Topic:   cfg.kafkaTopic,
		Logger:  logger,
	})
	defer kafkaSink.Close()

	// Feeds. Each is an independent worker with its own connection; the
	// dedupe behavior of some RPC providers makes sharing one connection
	// between subscriptions to the same program unsafe.
	feedHealth := feed.NewHealth(feed.HealthConfig{
		Threshold:   cfg.feedDownThreshold,
		Broadcaster: hub,
		Logger:      logger,
	})
	onStateChange := func(kind domain.FeedKind, st feed.State) {
		metrics.FeedState.WithLabelValues(string(kind)).Set(float64(st))
		if st == feed.StateReconnecting {
			metrics.FeedReconnects.WithLabelValues(string(kind)).Inc()
		}
		feedHealth.Observe(kind, st)
	}

	subs := []*feed.Subscription{
		feed.NewSubscription(feed.SubscriptionConfig{
			Kind:          domain.FeedCurveTrades,
			Endpoint:      cfg.wsEndpoint,
			Program:       curveProgram,
			OnStateChange: onStateChange,
			Logger:        logger,
		}),
		feed.NewSubscription(feed.SubscriptionConfig{
			Kind:          domain.FeedAMMPools,
			Endpoint:      cfg.wsEndpoint,
			Program:       ammProgram,
			AccountFeed:   true,
			OnStateChange: onStateChange,
			Logger:        logger,
		}),
		feed.NewSubscription(feed.SubscriptionConfig{
			Kind:          domain.FeedAMMTrades,
			Endpoint:      cfg.wsEndpoint,
			Program:       ammProgram,
			OnStateChange: onStateChange,
			Logger:        logger,
		}),
	}

	var feedWG sync.WaitGroup
	for _, sub := range subs {
		feedWG.Add(1)
		go func(s *feed.Subscription) {
			defer feedWG.Done()
			if err := s.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Feed stopped: %v", err)
			}
		}(sub)
	}

	pipeline := ingest.New(ingest.Options{
		Feeds: ingest.Feeds{
			CurveTrades: subs[0].Transactions(),
			AmmPools:    subs[1].Accounts(),
			AmmTrades:   subs[2].Transactions(),
		},
		Reconciler:  rec,
		Calculator:  calc,
		Tokens:      tokenStore,
		Broadcaster: hub,
		Sink:        kafkaSink,
		Metrics:     metrics,
		Logger:      logger,
	})

	go broadcastStats(ctx, hub, tokenStore, pipeline, logger)

	logger.Printf("Live ingestion started (curve=%s amm=%s)", curveProgram, ammProgram)

	// Run blocks until the feeds close their channels on cancellation and
	// every buffered update has drained.
	err := pipeline.Run(ctx)
	feedWG.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func wsMux(hub *broadcast.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		broadcast.ServeWS(hub, w, r)
	})
	return mux
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func shutdownServer(srv *http.Server, logger *log.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server shutdown: %v", err)
	}
}

// broadcastStats pushes a periodic stats event to subscribers.
func broadcastStats(ctx context.Context, hub *broadcast.Hub, tokens storage.TokenStore, pipeline *ingest.Pipeline, logger *log.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := tokens.Count(ctx)
			if err != nil {
				logger.Printf("Count tokens for stats: %v", err)
				continue
			}
			hub.Broadcast(&domain.Event{
				Type: domain.EventKindStats,
				Data: domain.StatsEventPayload{
					TrackedTokens:    count,
					ConnectedClients: hub.ClientCount(),
					HighestSlot:      pipeline.HighestSlot(),
				},
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}
}

// trackSampleAge keeps the sample-age gauge fresh between samples.
func trackSampleAge(ctx context.Context, lastSampleMs *atomic.Int64, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if last := lastSampleMs.Load(); last > 0 {
				metrics.SolPriceAge.Set(time.Since(time.UnixMilli(last)).Seconds())
			}
		}
	}
}

func splitBrokers(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
