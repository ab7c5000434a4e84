package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sekretos_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sekretos_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	AgentsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sekretos_agents_registered_total",
			Help: "Total agents registered",
		},
	)

	RegistrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sekretos_registration_failures_total",
			Help: "Registration flow failures by class",
		},
		[]string{"reason"}, // "pool_exhausted", "claim_race", "provisioning", "other"
	)

	ClaimRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sekretos_claim_retries_total",
			Help: "Claims retried after losing the race for a candidate",
		},
	)

	MessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sekretos_messages_published_total",
			Help: "Total feed transmissions published",
		},
	)

	FeedSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekretos_feed_subscriptions",
			Help: "Currently open live feed subscriptions",
		},
	)

	MissionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sekretos_missions_completed_total",
			Help: "Total missions completed",
		},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sekretos_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sekretos_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
