package client

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one logical call, including any wait on a refresh
const DefaultTimeout = 30 * time.Second

// Option configures a Client
type Option func(*Client)

// WithTransport sets the base transport used for every attempt
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTimeout sets the http.Client timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// WithRefreshObserver registers a hook called with true when a refresh starts
// and false once it has settled, successfully or not
func WithRefreshObserver(fn func(refreshing bool)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// WithLogoutHandler registers the handler fired when the session is
// terminated. Credentials are already cleared when it runs.
func WithLogoutHandler(fn func()) Option {
	return func(c *Client) {
		c.onLogout = fn
	}
}

// WithRefreshPath overrides the refresh endpoint path, relative to the base URL
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithCookieJar sets the jar holding the refresh session cookie
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithRefreshFunc replaces the cookie-based refresh call
func WithRefreshFunc(fn RefreshFunc) Option {
	return func(c *Client) {
		c.refreshFunc = fn
	}
}
