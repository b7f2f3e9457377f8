// Package config loads daemon configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the ingest daemon reads from the environment.
// Command-line flags in cmd override individual fields.
type Config struct {
	// Stream source
	RPCWebSocketURL   string
	CurveProgram      string
	AmmProgram        string
	FeedDownThreshold time.Duration // outage length before subscribers are told

	// Storage
	PostgresDSN   string
	ClickhouseDSN string // empty disables the analytical snapshot sink
	UseMemory     bool

	// Serving
	ListenAddr        string
	MetricsListenAddr string

	// SOL/USD sampling
	BinanceBaseURL   string
	SolPriceInterval time.Duration
	SolPriceTTL      time.Duration

	// Kafka fan-out (empty brokers disables)
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration, consulting a .env file when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		RPCWebSocketURL:   getEnv("RPC_WS_URL", "wss://api.mainnet-beta.solana.com"),
		CurveProgram:      getEnv("CURVE_PROGRAM", ""),
		AmmProgram:        getEnv("AMM_PROGRAM", ""),
		FeedDownThreshold: getEnvAsDuration("FEED_DOWN_THRESHOLD", time.Minute),

		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/launchstream?sslmode=disable"),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		UseMemory:     getEnvAsBool("USE_MEMORY", false),

		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),

		BinanceBaseURL:   getEnv("BINANCE_BASE", ""),
		SolPriceInterval: getEnvAsDuration("SOL_PRICE_INTERVAL", time.Minute),
		SolPriceTTL:      getEnvAsDuration("SOL_PRICE_TTL", 24*time.Hour),

		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "launchstream-events"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
