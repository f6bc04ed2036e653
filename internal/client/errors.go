package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken is returned by a TokenStore that holds no access token
	ErrNoToken = errors.New("no access token stored")

	// ErrAccountBlocked is matched by errors returned when the server reports
	// the account as blocked or suspended
	ErrAccountBlocked = errors.New("account blocked")

	// ErrSessionExpired is returned to every request that was waiting on a
	// refresh that failed
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshFailed is matched by errors from the refresh endpoint call
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoAccessToken means the refresh or login response carried no token
	ErrNoAccessToken = errors.New("no access token in response")
)

// AccountBlockedError is returned when a response reports a blocked account.
// The session has already been cleared when a caller sees this error.
type AccountBlockedError struct {
	StatusCode int
	Message    string
}

func (e *AccountBlockedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("account blocked (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("account blocked (status %d): %s", e.StatusCode, e.Message)
}

func (e *AccountBlockedError) Is(target error) bool {
	return target == ErrAccountBlocked
}

// RefreshError describes a non-2xx answer from the refresh endpoint
type RefreshError struct {
	StatusCode int
	Message    string
}

func (e *RefreshError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("token refresh failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed || (target == ErrAccountBlocked && e.Blocked())
}

// Blocked reports whether the refresh endpoint rejected a blocked account
func (e *RefreshError) Blocked() bool {
	return isAuthStatus(e.StatusCode) && isBlockedMessage(e.Message)
}

// APIError is returned by the JSON helpers for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	text := http.StatusText(e.StatusCode)
	if e.Message != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, text, e.Message)
	}
	return fmt.Sprintf("api error %d %s", e.StatusCode, text)
}

// IsUnauthorized reports whether err is an APIError with status 401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
