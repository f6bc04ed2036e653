package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/devilmonastery/storefront/internal/authstub"
	"github.com/devilmonastery/storefront/internal/config"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubHarness runs the development identity server and counts refresh calls.
// A hold installed with holdRefresh keeps refresh calls parked until it
// reports true, so every concurrent caller can join the same flight.
type stubHarness struct {
	server *httptest.Server
	clock  *stubClock

	refreshes atomic.Int32
	mu        sync.Mutex
	hold      func() bool
}

func newStubHarness(t *testing.T) *stubHarness {
	t.Helper()

	hash := func(password string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}

	cfg := config.Default()
	cfg.Auth.JWT.SigningKey = "integration-signing-key-0123456789"
	cfg.Auth.JWT.Lifetime = time.Minute
	cfg.Auth.Session.Secret = "integration-session-secret-012345"
	cfg.Auth.Session.Lifetime = time.Hour
	cfg.Users = []config.UserConfig{
		{ID: "1", Email: "shopper@example.com", PasswordHash: hash("hunter2"), Role: authstub.RoleCustomer},
		{ID: "2", Email: "admin@example.com", PasswordHash: hash("root"), Role: authstub.RoleAdmin},
	}

	h := &stubHarness{clock: &stubClock{now: time.Now()}}
	stub := authstub.New(cfg, authstub.WithClock(h.clock.Now), authstub.WithLogger(discardLogger()))
	handler := stub.Handler()

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, DefaultRefreshPath) {
			h.refreshes.Add(1)
			h.waitForHold()
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *stubHarness) holdRefresh(until func() bool) {
	h.mu.Lock()
	h.hold = until
	h.mu.Unlock()
}

func (h *stubHarness) waitForHold() {
	h.mu.Lock()
	until := h.hold
	h.mu.Unlock()
	if until == nil {
		return
	}
	deadline := time.Now().Add(5 * time.Second)
	for !until() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *stubHarness) newClient(t *testing.T, rec *sessionRecorder) *Client {
	t.Helper()
	c, err := NewClient(h.server.URL+"/api", nil,
		WithLogger(discardLogger()),
		WithRefreshObserver(rec.observe),
		WithLogoutHandler(rec.logout))
	require.NoError(t, err)
	return c
}

// setBlocked logs in as the admin and flips the shopper's block flag
func (h *stubHarness) setBlocked(t *testing.T, userID string, blocked bool) {
	t.Helper()

	body, _ := json.Marshal(LoginRequest{Email: "admin@example.com", Password: "root"})
	resp, err := http.Post(h.server.URL+"/api/Auth/Login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var login struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()

	action := "unblock"
	if blocked {
		action = "block"
	}
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/Admin/Users/"+userID+"/"+action, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

type meResponse struct {
	Data struct {
		Email string `json:"email"`
	} `json:"data"`
}

// getMeConcurrently issues n simultaneous profile reads
func getMeConcurrently(c *Client, n int) ([]string, []error) {
	emails := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out meResponse
			errs[i] = c.Get(context.Background(), "/Users/me", &out)
			emails[i] = out.Data.Email
		}(i)
	}
	wg.Wait()
	return emails, errs
}

func TestStubConcurrentExpiryRefreshesOnce(t *testing.T) {
	h := newStubHarness(t)
	rec := &sessionRecorder{}
	c := h.newClient(t, rec)

	oldToken, err := c.Login(context.Background(), "shopper@example.com", "hunter2")
	require.NoError(t, err)

	const callers = 5
	h.clock.Advance(2 * time.Minute)
	h.holdRefresh(func() bool { return c.coordinator.Waiting() == callers })

	emails, errs := getMeConcurrently(c, callers)
	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, "shopper@example.com", emails[i])
	}

	assert.Equal(t, int32(1), h.refreshes.Load())
	assert.Equal(t, []bool{true, false}, rec.observed())
	assert.Zero(t, rec.logouts.Load())

	newToken, err := c.Store().GetToken()
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)
	assert.Equal(t, RefreshIdle, c.RefreshState())
}

func TestStubExpiredSessionLogsOutOnce(t *testing.T) {
	h := newStubHarness(t)
	rec := &sessionRecorder{}
	c := h.newClient(t, rec)

	_, err := c.Login(context.Background(), "shopper@example.com", "hunter2")
	require.NoError(t, err)

	const callers = 3
	// past both the token and the refresh session lifetime
	h.clock.Advance(2 * time.Hour)
	h.holdRefresh(func() bool { return c.coordinator.Waiting() == callers })

	_, errs := getMeConcurrently(c, callers)
	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.NotErrorIs(t, err, ErrAccountBlocked)
	}

	assert.Equal(t, int32(1), h.refreshes.Load())
	assert.Equal(t, int32(1), rec.logouts.Load())
	_, err = c.Store().GetToken()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStubBlockedAccountLogsOut(t *testing.T) {
	h := newStubHarness(t)
	rec := &sessionRecorder{}
	c := h.newClient(t, rec)
	ctx := context.Background()

	_, err := c.Login(ctx, "shopper@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, c.Get(ctx, "/Users/me", nil))

	h.setBlocked(t, "1", true)

	err = c.Get(ctx, "/Users/me", nil)
	require.Error(t, err)
	var blocked *AccountBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, http.StatusForbidden, blocked.StatusCode)

	assert.Zero(t, h.refreshes.Load())
	assert.Equal(t, int32(1), rec.logouts.Load())
	_, err = c.Store().GetToken()
	assert.ErrorIs(t, err, ErrNoToken)

	// login is refused without firing logout again
	_, err = c.Login(ctx, "shopper@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrAccountBlocked)
	assert.Equal(t, int32(1), rec.logouts.Load())

	h.setBlocked(t, "1", false)
	_, err = c.Login(ctx, "shopper@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, c.Get(ctx, "/Users/me", nil))
}

func TestStubBlockedDuringRefresh(t *testing.T) {
	h := newStubHarness(t)
	rec := &sessionRecorder{}
	c := h.newClient(t, rec)

	_, err := c.Login(context.Background(), "shopper@example.com", "hunter2")
	require.NoError(t, err)

	const callers = 4
	h.clock.Advance(2 * time.Minute)
	h.setBlocked(t, "1", true)
	h.holdRefresh(func() bool { return c.coordinator.Waiting() == callers })

	_, errs := getMeConcurrently(c, callers)
	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.ErrorIs(t, err, ErrAccountBlocked)
	}

	assert.Equal(t, int32(1), h.refreshes.Load())
	assert.Equal(t, int32(1), rec.logouts.Load())
}

func TestStubLogoutEndsRefreshSession(t *testing.T) {
	h := newStubHarness(t)
	rec := &sessionRecorder{}
	c := h.newClient(t, rec)
	ctx := context.Background()

	_, err := c.Login(ctx, "shopper@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, int32(1), rec.logouts.Load())

	_, err = c.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	// the session was already closed by the explicit logout
	assert.Equal(t, int32(1), rec.logouts.Load())
}
