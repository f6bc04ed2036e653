package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// FailureKind is the classification of one response
type FailureKind int

const (
	// FailureNone means the call succeeded (2xx/3xx)
	FailureNone FailureKind = iota
	// FailureUnrelated covers transport errors and any status other than 401
	FailureUnrelated
	// FailureRefreshEndpoint is a 401 from the refresh endpoint itself
	FailureRefreshEndpoint
	// FailureAlreadyRetried is a 401 on a request that was already replayed
	FailureAlreadyRetried
	// FailureBlocked is a 401/403 reporting a blocked or suspended account
	FailureBlocked
	// FailureExpired is a 401 on a first attempt: the access token expired
	FailureExpired
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureUnrelated:
		return "unrelated"
	case FailureRefreshEndpoint:
		return "refresh_endpoint"
	case FailureAlreadyRetried:
		return "already_retried"
	case FailureBlocked:
		return "blocked"
	case FailureExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// failure is everything the classifier looks at for one attempt
type failure struct {
	hasResponse     bool
	statusCode      int
	message         string
	refreshEndpoint bool
	retried         bool
}

// maxErrorBody bounds how much of an error body is inspected
const maxErrorBody = 64 << 10

// classifyFailure maps one attempt onto exactly one FailureKind. The order of
// the checks matters: a blocked account wins over every other category,
// including failures of the refresh endpoint.
func classifyFailure(f failure) FailureKind {
	if f.hasResponse && f.statusCode < http.StatusBadRequest {
		return FailureNone
	}
	if f.hasResponse && isAuthStatus(f.statusCode) && isBlockedMessage(f.message) {
		return FailureBlocked
	}
	if !f.hasResponse || f.statusCode != http.StatusUnauthorized {
		return FailureUnrelated
	}
	if f.refreshEndpoint {
		return FailureRefreshEndpoint
	}
	if f.retried {
		return FailureAlreadyRetried
	}
	return FailureExpired
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// isBlockedMessage reports whether a server message describes an
// administratively blocked or suspended account
func isBlockedMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "block") || strings.Contains(lower, "suspended")
}

// errorEnvelope covers the message fields the API uses in error bodies
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}

// serverMessage returns the "message" field of a JSON error body. Session
// handling keys off this field only; other fields and plain-text bodies never
// mark an account as blocked.
func serverMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return ""
	}
	return env.Message
}

// parseErrorMessage extracts human-readable error text for APIError. It
// falls back to other common fields and to non-JSON bodies as trimmed text.
func parseErrorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		if trimmed[0] == '{' || trimmed[0] == '[' {
			return ""
		}
		return string(trimmed)
	}

	for _, m := range []string{env.Message, env.Error, env.Title, env.Detail} {
		if m != "" {
			return m
		}
	}
	return ""
}

// readErrorMessage reads the server message from resp and puts the body back
// so callers still see the original bytes
func readErrorMessage(resp *http.Response) string {
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	if err != nil {
		return ""
	}
	return serverMessage(body)
}

// newFailure builds the classifier input for one attempt
func newFailure(orig *originalRequest, resp *http.Response, refreshPath string) failure {
	f := failure{
		refreshEndpoint: isRefreshPath(orig.path(), refreshPath),
		retried:         orig.retried,
	}
	if resp == nil {
		return f
	}

	f.hasResponse = true
	f.statusCode = resp.StatusCode
	if isAuthStatus(resp.StatusCode) {
		f.message = readErrorMessage(resp)
	}
	return f
}
