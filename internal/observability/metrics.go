// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	UpdatesReceived *prometheus.CounterVec
	FeedState       *prometheus.GaugeVec
	FeedReconnects  *prometheus.CounterVec
	HighestSlotSeen prometheus.Gauge

	// Decode metrics
	DecodeResults *prometheus.CounterVec

	// Reconcile metrics
	TradesStored    prometheus.Counter
	DuplicateTrades prometheus.Counter
	StaleUpdates    prometheus.Counter
	NewTokens       prometheus.Counter
	Graduations     prometheus.Counter
	SnapshotsStored prometheus.Counter

	// Broadcast metrics
	ConnectedClients prometheus.Gauge
	DroppedClients   prometheus.Counter
	EventsBroadcast  *prometheus.CounterVec

	// SOL/USD rate metrics
	SolPriceUSD       prometheus.Gauge
	SolPriceAge       prometheus.Gauge
	SolPriceFetchErrs prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchstream"
	}

	return &Metrics{
		// Feed metrics
		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "updates_received_total",
			Help:      "Total number of stream updates received by feed",
		}, []string{"feed"}),
		FeedState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state",
			Help:      "Current subscription state per feed (enum value)",
		}, []string{"feed"}),
		FeedReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect cycles by feed",
		}, []string{"feed"}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "highest_slot_seen",
			Help:      "Highest slot number seen across all feeds",
		}),

		// Decode metrics
		DecodeResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "results_total",
			Help:      "Total decode outcomes by feed and result (decoded, skipped, malformed)",
		}, []string{"feed", "result"}),

		// Reconcile metrics
		TradesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "trades_stored_total",
			Help:      "Total number of trades inserted",
		}),
		DuplicateTrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duplicate_trades_total",
			Help:      "Total number of replayed trade signatures discarded",
		}),
		StaleUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "stale_updates_total",
			Help:      "Total number of token updates discarded by the slot guard",
		}),
		NewTokens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "new_tokens_total",
			Help:      "Total number of mints observed for the first time",
		}),
		Graduations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "graduations_total",
			Help:      "Total number of tokens graduated to the AMM",
		}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pool_snapshots_stored_total",
			Help:      "Total number of AMM reserve snapshots recorded",
		}),

		// Broadcast metrics
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "connected_clients",
			Help:      "Number of connected WebSocket subscribers",
		}),
		DroppedClients: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "dropped_clients_total",
			Help:      "Total number of clients dropped for falling behind",
		}),
		EventsBroadcast: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_total",
			Help:      "Total number of events broadcast by kind",
		}, []string{"kind"}),

		// SOL/USD rate metrics
		SolPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solusd",
			Name:      "price_usd",
			Help:      "Latest sampled SOL/USD rate",
		}),
		SolPriceAge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solusd",
			Name:      "sample_age_seconds",
			Help:      "Age of the latest SOL/USD sample",
		}),
		SolPriceFetchErrs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solusd",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed SOL/USD fetches",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
