package client

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/devilmonastery/storefront/internal/pkg/metrics"
)

// metricsTransport wraps an http.RoundTripper to collect metrics on API calls.
// It sits below AuthTransport so every attempt, including replays and refresh
// calls, is counted.
type metricsTransport struct {
	base http.RoundTripper
}

// NewMetricsTransport creates a transport wrapper that records call counts,
// latency and errors for every request sent through base
func NewMetricsTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base}
}

// RoundTrip implements http.RoundTripper
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	route := normalizeRoute(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.APIRequests.WithLabelValues(req.Method, route, strconv.Itoa(statusCode)).Inc()
	metrics.APIDuration.WithLabelValues(req.Method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		metrics.APIErrors.WithLabelValues(route, classifyAPIError(statusCode, err)).Inc()
	}

	return resp, err
}

var routePatterns = []struct {
	regex   *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`), "/:id$1"},
	{regexp.MustCompile(`/\d+(/|$)`), "/:id$1"},
}

// normalizeRoute replaces numeric and UUID path segments with placeholders
// to keep metric cardinality bounded
func normalizeRoute(path string) string {
	normalized := path
	for _, p := range routePatterns {
		// run twice so adjacent ids sharing a slash are both replaced
		normalized = p.regex.ReplaceAllString(normalized, p.replace)
		normalized = p.regex.ReplaceAllString(normalized, p.replace)
	}
	return normalized
}

// classifyAPIError categorizes API errors for metrics
func classifyAPIError(statusCode int, err error) string {
	if err != nil {
		return metrics.ClassifyTransportError(err)
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
