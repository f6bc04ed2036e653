package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseAccessToken(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
		wantErr  bool
	}{
		{name: "data envelope", body: `{"data":{"accessToken":"abc"}}`, expected: "abc"},
		{name: "bare", body: `{"accessToken":"xyz"}`, expected: "xyz"},
		{name: "envelope wins", body: `{"data":{"accessToken":"a"},"accessToken":"b"}`, expected: "a"},
		{name: "missing", body: `{"data":{}}`, wantErr: true},
		{name: "blank", body: `{"data":{"accessToken":"  "}}`, wantErr: true},
		{name: "not json", body: `ok`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := parseAccessToken([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrNoAccessToken) {
					t.Errorf("parseAccessToken(%q) error = %v, want ErrNoAccessToken", tt.body, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAccessToken(%q) unexpected error: %v", tt.body, err)
			}
			if token != tt.expected {
				t.Errorf("parseAccessToken(%q) = %q, want %q", tt.body, token, tt.expected)
			}
		})
	}
}

func TestCookieRefresher(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantToken   string
		wantErr     error
		wantBlocked bool
	}{
		{
			name:      "success",
			status:    http.StatusOK,
			body:      `{"data":{"accessToken":"new-token"}}`,
			wantToken: "new-token",
		},
		{
			name:    "expired refresh session",
			status:  http.StatusUnauthorized,
			body:    `{"message":"Refresh token expired"}`,
			wantErr: ErrRefreshFailed,
		},
		{
			name:        "blocked",
			status:      http.StatusForbidden,
			body:        `{"message":"Your account has been blocked"}`,
			wantErr:     ErrAccountBlocked,
			wantBlocked: true,
		},
		{
			name:    "no token in body",
			status:  http.StatusOK,
			body:    `{"data":{}}`,
			wantErr: ErrNoAccessToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Empty(t, r.Header.Get("Authorization"), "refresh call must not carry a bearer token")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			r := newCookieRefresher(server.Client(), server.URL+"/api/Auth/Refresh-Token", discardLogger())
			token, err := r.Refresh(context.Background())

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var refreshErr *RefreshError
				if errors.As(err, &refreshErr) {
					assert.Equal(t, tt.wantBlocked, refreshErr.Blocked())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestCookieRefresherTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	r := newCookieRefresher(&http.Client{}, url+"/api/Auth/Refresh-Token", discardLogger())
	_, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}
