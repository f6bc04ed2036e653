package client

import (
	"bytes"
	"io"
	"net/http"
	"testing"
)

func TestIsRefreshPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		refreshPath string
		expected    bool
	}{
		{name: "exact", path: "/Auth/Refresh-Token", refreshPath: DefaultRefreshPath, expected: true},
		{name: "prefixed", path: "/api/Auth/Refresh-Token", refreshPath: DefaultRefreshPath, expected: true},
		{name: "case insensitive", path: "/api/auth/refresh-token", refreshPath: DefaultRefreshPath, expected: true},
		{name: "other endpoint", path: "/api/Products", refreshPath: DefaultRefreshPath, expected: false},
		{name: "login", path: "/api/Auth/Login", refreshPath: DefaultRefreshPath, expected: false},
		{name: "empty refresh path", path: "/api/Products", refreshPath: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRefreshPath(tt.path, tt.refreshPath)
			if result != tt.expected {
				t.Errorf("isRefreshPath(%q, %q) = %v, want %v", tt.path, tt.refreshPath, result, tt.expected)
			}
		})
	}
}

func TestAnnotateRequest(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		token    string
		expected string
	}{
		{name: "attaches bearer", url: "http://api.test/api/Products", token: "abc", expected: "Bearer abc"},
		{name: "no token", url: "http://api.test/api/Products", token: "", expected: ""},
		{name: "refresh endpoint never annotated", url: "http://api.test/api/Auth/Refresh-Token", token: "abc", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}

			out := annotateRequest(req, tt.token, DefaultRefreshPath)
			if got := out.Header.Get("Authorization"); got != tt.expected {
				t.Errorf("Authorization = %q, want %q", got, tt.expected)
			}
			if req.Header.Get("Authorization") != "" {
				t.Error("input request was mutated")
			}
		})
	}
}

func TestAnnotateReplacesExistingHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://api.test/api/Products", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer stale")

	out := annotateRequest(req, "fresh", DefaultRefreshPath)
	if values := out.Header.Values("Authorization"); len(values) != 1 || values[0] != "Bearer fresh" {
		t.Errorf("Authorization = %v, want [Bearer fresh]", values)
	}
}

func TestSnapshotRequestReplaysBody(t *testing.T) {
	payload := []byte(`{"sku":"ABC-1","quantity":2}`)
	req, err := http.NewRequest(http.MethodPost, "http://api.test/api/Cart", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	orig, err := snapshotRequest(req)
	if err != nil {
		t.Fatalf("snapshotRequest: %v", err)
	}

	for i, attempt := range []*originalRequest{orig, orig.markRetried()} {
		built := attempt.build()
		body, err := io.ReadAll(built.Body)
		if err != nil {
			t.Fatalf("attempt %d: reading body: %v", i, err)
		}
		if !bytes.Equal(body, payload) {
			t.Errorf("attempt %d: body = %q, want %q", i, body, payload)
		}
		if built.ContentLength != int64(len(payload)) {
			t.Errorf("attempt %d: ContentLength = %d, want %d", i, built.ContentLength, len(payload))
		}
	}

	if orig.retried {
		t.Error("markRetried mutated the original snapshot")
	}
}

func TestSnapshotRequestWithoutBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://api.test/api/Products", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	orig, err := snapshotRequest(req)
	if err != nil {
		t.Fatalf("snapshotRequest: %v", err)
	}
	if orig.hasBody {
		t.Error("expected no body")
	}
	if built := orig.build(); built.Body != nil && built.Body != http.NoBody {
		t.Error("expected built request to carry no body")
	}
}
