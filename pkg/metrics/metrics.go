package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Histogram buckets sized for interactive API calls: most responses
	// land under a second, slow uploads can take tens of seconds
	APICallBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34}

	// Backend API call metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kindra_client_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: APICallBuckets,
		},
		[]string{"operation", "status"},
	)

	APIRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_request_total",
			Help: "Total number of backend API requests",
		},
		[]string{"operation", "status"},
	)

	// Auth operation metrics
	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_auth_operations_total",
			Help: "Total number of auth operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Profile cache metrics
	ProfileCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_profile_cache_hits_total",
			Help: "Total number of profile cache hits",
		},
		[]string{"cache_name"},
	)

	ProfileCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_profile_cache_misses_total",
			Help: "Total number of profile cache misses",
		},
		[]string{"cache_name"},
	)

	ProfileRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_profile_refresh_total",
			Help: "Total number of profile refreshes by outcome",
		},
		[]string{"outcome"},
	)

	// Chat poller metrics
	ChatPollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindra_client_chat_poll_total",
			Help: "Total number of chat history polls by outcome",
		},
		[]string{"outcome"},
	)
)

// MeasureDuration returns the elapsed time since start in seconds
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
