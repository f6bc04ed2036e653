package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	loginPath  = "/Auth/Login"
	logoutPath = "/Auth/Logout"
)

// Client is an HTTP client for the storefront API with session handling:
// bearer tokens are attached automatically and expired tokens are renewed
// through a single shared refresh.
type Client struct {
	baseURL *url.URL

	httpClient    *http.Client
	sessionClient *http.Client
	transport     *AuthTransport
	coordinator   *refreshCoordinator
	store         TokenStore

	base        http.RoundTripper
	timeout     time.Duration
	jar         http.CookieJar
	refreshPath string
	refreshFunc RefreshFunc
	observer    func(bool)
	onLogout    func()
	log         *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL.
// If store is nil the token is only kept in memory.
func NewClient(baseURL string, store TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:     u,
		store:       store,
		base:        http.DefaultTransport,
		timeout:     DefaultTimeout,
		refreshPath: DefaultRefreshPath,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = NewMemoryStore("")
	}
	if c.base == nil {
		c.base = http.DefaultTransport
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "session-client")

	if c.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.jar = jar
	}

	instrumented := NewMetricsTransport(c.base)

	// sessionClient talks to the auth endpoints without bearer handling
	c.sessionClient = &http.Client{
		Transport: instrumented,
		Jar:       c.jar,
		Timeout:   c.timeout,
	}

	if c.refreshFunc == nil {
		c.refreshFunc = newCookieRefresher(c.sessionClient, c.resolve(c.refreshPath), c.log).Refresh
	}

	c.coordinator = newRefreshCoordinator(c.store, c.refreshFunc, c.observer, c.onLogout, c.log)
	c.transport = &AuthTransport{
		base:        instrumented,
		store:       c.store,
		coordinator: c.coordinator,
		refreshPath: c.refreshPath,
		log:         c.log,
	}
	c.httpClient = &http.Client{
		Transport: c.transport,
		Jar:       c.jar,
		Timeout:   c.timeout,
	}

	return c, nil
}

// HTTPClient returns the authenticated *http.Client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Transport returns the session-aware round tripper
func (c *Client) Transport() *AuthTransport {
	return c.transport
}

// Store returns the credential store
func (c *Client) Store() TokenStore {
	return c.store
}

// RefreshState returns whether a refresh is currently in flight
func (c *Client) RefreshState() RefreshState {
	return c.coordinator.State()
}

// Do sends req through the session-aware transport
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// resolve joins a path onto the base URL. Absolute URLs are returned as is.
func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err == nil && ref.IsAbs() {
		return path
	}

	u := *c.baseURL
	if err != nil {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
		return u.String()
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	return u.String()
}

// NewRequest builds a request for path relative to the base URL. A non-nil
// body is encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reader = bytes.NewReader(b)
		case json.RawMessage:
			reader = bytes.NewReader(b)
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// DoJSON sends a JSON request and decodes the response into out. Non-2xx
// responses are returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    parseErrorMessage(body),
			Body:       body,
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Get performs a GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.DoJSON(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.DoJSON(ctx, http.MethodPost, path, in, out)
}

// Put performs a PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	return c.DoJSON(ctx, http.MethodPut, path, in, out)
}

// Delete performs a DELETE
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.DoJSON(ctx, http.MethodDelete, path, nil, out)
}

// LoginRequest is the body of the login call
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token and a refresh session.
// The token is saved in the store; the session cookie lands in the jar.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	data, err := json.Marshal(LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(loginPath), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.sessionClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if message := serverMessage(body); isAuthStatus(resp.StatusCode) && isBlockedMessage(message) {
			return "", &AccountBlockedError{StatusCode: resp.StatusCode, Message: message}
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: parseErrorMessage(body), Body: body}
	}

	token, err := parseAccessToken(body)
	if err != nil {
		return "", err
	}
	if err := c.store.SaveToken(token); err != nil {
		return "", fmt.Errorf("failed to store access token: %w", err)
	}
	c.coordinator.rearm()

	c.log.Info("logged in", slog.String("token_prefix", tokenPreview(token)))
	return token, nil
}

// Logout ends the server session, clears local credentials and fires the
// logout handler. The server call is best effort.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(logoutPath), http.NoBody)
	if err == nil {
		if token, tokErr := c.store.GetToken(); tokErr == nil {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, doErr := c.sessionClient.Do(req)
		if doErr != nil {
			c.log.Warn("logout request failed", slog.String("error", doErr.Error()))
		} else {
			closeResponse(resp)
		}
	}

	if err := c.store.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	c.coordinator.forceLogout(logoutUser)
	return nil
}

// Refresh forces a token refresh, joining one already in flight
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.coordinator.await(ctx)
}
