package client

import (
	"net/http"
	"strings"
)

// DefaultRefreshPath is the refresh endpoint, relative to the API base URL
const DefaultRefreshPath = "/Auth/Refresh-Token"

// isRefreshPath reports whether path targets the refresh endpoint.
// Matching is a case-insensitive substring test so that "/api/Auth/Refresh-Token"
// and "auth/refresh-token" both count.
func isRefreshPath(path, refreshPath string) bool {
	needle := strings.ToLower(strings.Trim(refreshPath, "/"))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(path), needle)
}

// annotateRequest attaches the bearer credential to an outbound request.
// Requests to the refresh endpoint and requests made without a token are
// returned unmodified. The input request is never mutated.
func annotateRequest(req *http.Request, token, refreshPath string) *http.Request {
	if isRefreshPath(req.URL.Path, refreshPath) {
		return req
	}
	if token == "" {
		return req
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}
