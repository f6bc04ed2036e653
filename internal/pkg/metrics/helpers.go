package metrics

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// RecordRefresh records the settlement of one refresh flight
// outcome: "success", "failure" or "blocked"
// duration: time from the refresh call starting to it settling
func RecordRefresh(outcome string, duration time.Duration) {
	SessionRefreshes.WithLabelValues(outcome).Inc()
	SessionRefreshDuration.Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequest records a request served by the stub server
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(float64(duration.Milliseconds()))
}

// ClassifyTransportError categorizes errors returned by an http.RoundTripper
func ClassifyTransportError(err error) string {
	if err == nil {
		return "none"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"):
		return "connection"
	case strings.Contains(errStr, "tls"):
		return "tls"
	default:
		return "network"
	}
}
