package client

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		in       failure
		expected FailureKind
	}{
		{
			name:     "success",
			in:       failure{hasResponse: true, statusCode: 200},
			expected: FailureNone,
		},
		{
			name:     "redirect is not a failure",
			in:       failure{hasResponse: true, statusCode: 304},
			expected: FailureNone,
		},
		{
			name:     "transport error",
			in:       failure{},
			expected: FailureUnrelated,
		},
		{
			name:     "server error",
			in:       failure{hasResponse: true, statusCode: 500},
			expected: FailureUnrelated,
		},
		{
			name:     "forbidden without blocked message",
			in:       failure{hasResponse: true, statusCode: 403, message: "Insufficient permissions"},
			expected: FailureUnrelated,
		},
		{
			name:     "not found mentioning block is unrelated",
			in:       failure{hasResponse: true, statusCode: 404, message: "block not found"},
			expected: FailureUnrelated,
		},
		{
			name:     "401 blocked",
			in:       failure{hasResponse: true, statusCode: 401, message: "Your account has been blocked"},
			expected: FailureBlocked,
		},
		{
			name:     "403 suspended",
			in:       failure{hasResponse: true, statusCode: 403, message: "Account SUSPENDED by administrator"},
			expected: FailureBlocked,
		},
		{
			name:     "blocked wins over refresh endpoint",
			in:       failure{hasResponse: true, statusCode: 401, message: "User is blocked", refreshEndpoint: true},
			expected: FailureBlocked,
		},
		{
			name:     "blocked wins over already retried",
			in:       failure{hasResponse: true, statusCode: 401, message: "blocked", retried: true},
			expected: FailureBlocked,
		},
		{
			name:     "refresh endpoint 401",
			in:       failure{hasResponse: true, statusCode: 401, message: "Refresh token expired", refreshEndpoint: true},
			expected: FailureRefreshEndpoint,
		},
		{
			name:     "refresh endpoint wins over already retried",
			in:       failure{hasResponse: true, statusCode: 401, refreshEndpoint: true, retried: true},
			expected: FailureRefreshEndpoint,
		},
		{
			name:     "already retried",
			in:       failure{hasResponse: true, statusCode: 401, retried: true},
			expected: FailureAlreadyRetried,
		},
		{
			name:     "expired",
			in:       failure{hasResponse: true, statusCode: 401, message: "Token expired"},
			expected: FailureExpired,
		},
		{
			name:     "expired without body",
			in:       failure{hasResponse: true, statusCode: 401},
			expected: FailureExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyFailure(tt.in)
			if result != tt.expected {
				t.Errorf("classifyFailure(%+v) = %s, want %s", tt.in, result, tt.expected)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "message field", body: `{"message":"Token expired"}`, expected: "Token expired"},
		{name: "error field", body: `{"error":"invalid_grant"}`, expected: "invalid_grant"},
		{name: "problem details", body: `{"title":"Unauthorized","detail":"nope"}`, expected: "Unauthorized"},
		{name: "message wins", body: `{"error":"x","message":"y"}`, expected: "y"},
		{name: "plain text", body: "  account blocked \n", expected: "account blocked"},
		{name: "empty", body: "", expected: ""},
		{name: "malformed json", body: `{"message":`, expected: ""},
		{name: "json without message", body: `{"data":null}`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseErrorMessage([]byte(tt.body))
			if result != tt.expected {
				t.Errorf("parseErrorMessage(%q) = %q, want %q", tt.body, result, tt.expected)
			}
		})
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "message field", body: `{"message":"Your account has been blocked"}`, expected: "Your account has been blocked"},
		{name: "error field ignored", body: `{"error":"account blocked"}`, expected: ""},
		{name: "plain text ignored", body: "ip is on the blocklist", expected: ""},
		{name: "array", body: `["blocked"]`, expected: ""},
		{name: "empty", body: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverMessage([]byte(tt.body)); got != tt.expected {
				t.Errorf("serverMessage(%q) = %q, want %q", tt.body, got, tt.expected)
			}
		})
	}
}

// Only the message field can report a blocked account
func TestBlockedDetectionUsesMessageField(t *testing.T) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/api/Products"}}
	orig := &originalRequest{req: req}

	tests := []struct {
		name     string
		body     string
		expected FailureKind
	}{
		{name: "message", body: `{"message":"Your account has been blocked"}`, expected: FailureBlocked},
		{name: "plain text", body: "request matched the blocklist", expected: FailureExpired},
		{name: "error field", body: `{"error":"blocked"}`, expected: FailureExpired},
		{name: "detail field", body: `{"title":"Unauthorized","detail":"suspended"}`, expected: FailureExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			if got := classifyFailure(newFailure(orig, resp, DefaultRefreshPath)); got != tt.expected {
				t.Errorf("classifyFailure() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestReadErrorMessageRestoresBody(t *testing.T) {
	const body = `{"message":"Token expired"}`
	resp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(strings.NewReader(body)),
	}

	if msg := readErrorMessage(resp); msg != "Token expired" {
		t.Fatalf("readErrorMessage() = %q, want %q", msg, "Token expired")
	}

	rest, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading restored body: %v", err)
	}
	if string(rest) != body {
		t.Errorf("restored body = %q, want %q", rest, body)
	}
}

func TestNewFailure(t *testing.T) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/api/Auth/Refresh-Token"}}
	orig := &originalRequest{req: req}

	f := newFailure(orig, nil, DefaultRefreshPath)
	if f.hasResponse {
		t.Error("expected no response for transport error")
	}
	if !f.refreshEndpoint {
		t.Error("expected refresh endpoint to be detected")
	}

	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(strings.NewReader(`{"message":"blocked"}`)),
	}
	f = newFailure(orig.markRetried(), resp, DefaultRefreshPath)
	if f.message != "" {
		t.Errorf("message should only be read for 401/403, got %q", f.message)
	}
	if !f.retried {
		t.Error("expected retried flag to carry over")
	}
}

func TestFailureKindString(t *testing.T) {
	if FailureExpired.String() != "expired" {
		t.Errorf("FailureExpired.String() = %q", FailureExpired.String())
	}
	if FailureKind(99).String() != "unknown" {
		t.Errorf("FailureKind(99).String() = %q", FailureKind(99).String())
	}
}
