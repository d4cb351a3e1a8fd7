package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_messages_total",
			Help: "Inbound chat messages by classified intent",
		},
		[]string{"kind", "intent"},
	)

	MessageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_message_duration_seconds",
			Help:    "Time to fully handle one inbound message, search included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"kind"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_searches_total",
			Help: "Search executions by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_search_duration_seconds",
			Help:    "Search execution duration including polling",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 1.5, 3, 5, 10, 15, 20, 30},
		},
		[]string{"backend", "source"},
	)

	SearchPolls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_search_polls",
			Help:    "Poll round-trips per search execution",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		},
		[]string{"backend"},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_stale_results_discarded_total",
			Help: "Search results dropped because a newer search superseded them",
		},
	)

	SelectDedupeHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_select_dedupe_hits_total",
			Help: "Repeated result selections answered with an already-checking ack",
		},
	)

	ClassifierCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_classifier_calls_total",
			Help: "External classifier calls by outcome",
		},
		[]string{"outcome"},
	)

	LeadsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_leads_total",
			Help: "Booking leads handed to sinks",
		},
		[]string{"sink", "status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
		[]string{"kind"},
	)

	ESQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "es_query_duration_seconds",
			Help:    "Elasticsearch query duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"index", "status"},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	IndexingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexing_lag_seconds",
			Help: "Current inventory indexing lag in seconds",
		},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_events_total",
			Help: "Total number of inventory events processed",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowSearchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_search_total",
			Help: "Total number of slow search executions",
		},
		[]string{"severity", "backend"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "concierge_active_sessions",
			Help: "Conversations held by the in-memory session store",
		},
	)
)
