package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of mobile-money payments initiated",
	}, []string{"provider"})

	PaymentsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Total number of payments confirmed completed",
	}, []string{"provider"})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of payments that ended in a terminal failure",
	}, []string{"provider", "reason"})

	PaymentPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_poll_attempts",
		Help:    "Status queries issued before a watched transaction resolved",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 20, 25, 30},
	})

	PaymentPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_poll_errors_total",
		Help: "Transient errors swallowed during status polling",
	})

	PaymentConfirmationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_confirmation_latency_seconds",
		Help:    "Time from initiation to terminal status",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations forwarded upstream",
	}, []string{"op"})

	CartRefetchDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_refetch_discarded_total",
		Help: "Authoritative cart refetches discarded as stale",
	})

	CartCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_cache_hits_total",
		Help: "Cart reads served from the Redis cache",
	})

	CartCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_cache_misses_total",
		Help: "Cart reads that fell through to the backend",
	})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total number of sessions created",
	})

	SessionsRevokedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_revoked_total",
		Help: "Total number of sessions revoked",
	}, []string{"reason"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latency of calls to the backend API",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
