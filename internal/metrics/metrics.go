package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// Gateway metrics
	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_uploads_total",
			Help: "Content uploads relayed to the pinning provider",
		},
		[]string{"kind", "outcome"}, // kind: json|file, outcome: ok|rejected|failed
	)

	PinLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_pin_latency_seconds",
			Help:    "Pinning provider request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	MetadataCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_metadata_cache_total",
			Help: "Agent metadata lookups by cache result",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	// Observer metrics
	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_poll_errors_total",
			Help: "Ledger polls that failed and were left for the next tick",
		},
		[]string{"source"}, // "watcher" or "directory"
	)

	DirectoryRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "market_directory_refresh_seconds",
			Help:    "Time to rebuild the agent directory",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	DirectoryAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_directory_agents",
			Help: "Agents in the latest directory snapshot",
		},
	)

	// Flow metrics
	FlowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_flow_outcomes_total",
			Help: "Submission flows by action and terminal phase",
		},
		[]string{"action", "phase"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "market_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_store_latency_seconds",
			Help:    "Upload store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"driver"},
	)
)
