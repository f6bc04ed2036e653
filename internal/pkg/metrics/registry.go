package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API Client Metrics
var (
	// APIRequests tracks outbound API calls made by the session client
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Total storefront API calls by method, route (normalized path), and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	// APIDuration tracks outbound API latency
	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "storefront_api_request_duration_ms",
			Help:                            "Storefront API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// APIErrors tracks failed API calls by error type
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_errors_total",
			Help: "Total storefront API errors by route and error type",
		},
		[]string{"route", "error_type"},
	)
)

// Session Metrics
var (
	// SessionFailures tracks classified failed responses
	SessionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_failures_total",
			Help: "Total failed API responses by failure classification",
		},
		[]string{"kind"},
	)

	// SessionRefreshes tracks refresh calls by outcome (success, failure, blocked)
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_refresh_total",
			Help: "Total access token refresh calls by outcome",
		},
		[]string{"outcome"},
	)

	// SessionRefreshDuration tracks how long a refresh flight takes to settle
	SessionRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:                            "storefront_session_refresh_duration_ms",
			Help:                            "Access token refresh duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
	)

	// SessionRefreshWaiters tracks requests currently suspended on a refresh
	SessionRefreshWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_session_refresh_waiters",
			Help: "Number of requests waiting for an in-flight token refresh",
		},
	)

	// SessionReplays tracks replays of requests after a refresh
	SessionReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_replays_total",
			Help: "Total requests replayed with a refreshed token, by outcome",
		},
		[]string{"outcome"},
	)

	// SessionLogouts tracks forced and user-initiated logouts
	SessionLogouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_logouts_total",
			Help: "Total session logouts by reason",
		},
		[]string{"reason"},
	)
)

// Stub Server Metrics
var (
	// HTTPRequests tracks HTTP requests served by the stub server
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_stub_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "storefront_stub_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_stub_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// StubTokensIssued tracks access tokens issued by the stub, by grant
	StubTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_stub_tokens_issued_total",
			Help: "Total access tokens issued by grant (login, refresh)",
		},
		[]string{"grant"},
	)
)
