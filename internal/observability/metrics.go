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
	// Signal metrics
	TicksProcessed  *prometheus.CounterVec
	SamplesProduced prometheus.Counter
	DataGaps        prometheus.Counter
	RegimesObserved *prometheus.CounterVec

	// Simulation metrics
	TradesClosed   *prometheus.CounterVec
	TradesRejected *prometheus.CounterVec
	FaultedAgents  prometheus.Gauge
	OpenPositions  prometheus.Gauge
	BatchDuration  prometheus.Histogram

	// Evolution metrics
	EvolutionCycles prometheus.Counter
	Generation      prometheus.Gauge
	ChampionScore   prometheus.Gauge
	AgentsRetired   prometheus.Counter

	// Risk metrics
	KillSwitchEngaged prometheus.Gauge
	KillSwitchTrips   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSampleTimestamp   prometheus.Gauge
	LastSnapshotTimestamp prometheus.Gauge
	FeedReconnects        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "spread_strategy_lab"
	}

	return &Metrics{
		// Signal metrics
		TicksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks processed by venue",
		}, []string{"venue"}),
		SamplesProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "samples_produced_total",
			Help:      "Total number of spread samples produced",
		}),
		DataGaps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "data_gaps_total",
			Help:      "Total number of unmatched or stale tick pairs",
		}),
		RegimesObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "regimes_observed_total",
			Help:      "Total number of samples observed by regime",
		}, []string{"regime"}),

		// Simulation metrics
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by exit reason",
		}, []string{"exit_reason"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_rejected_total",
			Help:      "Total number of entries declined by the risk gate, by reason",
		}, []string{"reason"}),
		FaultedAgents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "faulted_agents",
			Help:      "Current number of faulted agents in the population",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "open_positions",
			Help:      "Current number of open positions across the population",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "batch_duration_seconds",
			Help:      "Simulation batch execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Evolution metrics
		EvolutionCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "cycles_total",
			Help:      "Total number of completed evolution cycles",
		}),
		Generation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "generation",
			Help:      "Current population generation",
		}),
		ChampionScore: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "champion_score",
			Help:      "Composite score of the current champion",
		}),
		AgentsRetired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolution",
			Name:      "agents_retired_total",
			Help:      "Total number of agents retired across all cycles",
		}),

		// Risk metrics
		KillSwitchEngaged: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "kill_switch_engaged",
			Help:      "Whether the global kill switch is engaged (1 or 0)",
		}),
		KillSwitchTrips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "kill_switch_trips_total",
			Help:      "Total number of kill switch engagements",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSampleTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_sample_timestamp",
			Help:      "Event timestamp (ms) of the last processed spread sample",
		}),
		LastSnapshotTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_snapshot_timestamp",
			Help:      "Unix timestamp of the last persisted lab snapshot",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "feed_reconnects_total",
			Help:      "Total number of tick feed reconnects",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick increments the ticks processed counter for a venue.
func RecordTick(venue string) {
	DefaultMetrics.TicksProcessed.WithLabelValues(venue).Inc()
}

// RecordSample records a produced spread sample and its regime.
func RecordSample(regime string, timestampMs int64) {
	DefaultMetrics.SamplesProduced.Inc()
	DefaultMetrics.RegimesObserved.WithLabelValues(regime).Inc()
	DefaultMetrics.LastSampleTimestamp.Set(float64(timestampMs))
}

// RecordDataGap increments the data gap counter.
func RecordDataGap() {
	DefaultMetrics.DataGaps.Inc()
}

// RecordTradeClosed increments the closed trades counter for an exit reason.
func RecordTradeClosed(exitReason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(exitReason).Inc()
}

// RecordTradeRejected increments the rejected trades counter for a reason.
func RecordTradeRejected(reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(reason).Inc()
}

// UpdatePopulationHealth updates the faulted agent and open position gauges.
func UpdatePopulationHealth(faulted, openPositions int) {
	DefaultMetrics.FaultedAgents.Set(float64(faulted))
	DefaultMetrics.OpenPositions.Set(float64(openPositions))
}

// RecordEvolutionCycle records a completed evolution cycle.
func RecordEvolutionCycle(generation int, retired int, championScore float64) {
	DefaultMetrics.EvolutionCycles.Inc()
	DefaultMetrics.Generation.Set(float64(generation))
	DefaultMetrics.AgentsRetired.Add(float64(retired))
	DefaultMetrics.ChampionScore.Set(championScore)
}

// SetKillSwitch updates the kill switch gauge, counting engagements.
func SetKillSwitch(engaged bool) {
	if engaged {
		DefaultMetrics.KillSwitchEngaged.Set(1)
		DefaultMetrics.KillSwitchTrips.Inc()
	} else {
		DefaultMetrics.KillSwitchEngaged.Set(0)
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSnapshot updates the last snapshot timestamp gauge.
func RecordSnapshot(unixSeconds int64) {
	DefaultMetrics.LastSnapshotTimestamp.Set(float64(unixSeconds))
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordBatchDuration records a simulation batch duration.
func RecordBatchDuration(seconds float64) {
	DefaultMetrics.BatchDuration.Observe(seconds)
}
