package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/storefront/internal/pkg/metrics"
)

// RefreshState is the state of the refresh coordinator
type RefreshState int

const (
	// RefreshIdle means no refresh call is in flight
	RefreshIdle RefreshState = iota
	// RefreshRunning means a refresh call is in flight and callers queue on it
	RefreshRunning
)

func (s RefreshState) String() string {
	if s == RefreshRunning {
		return "refreshing"
	}
	return "idle"
}

// refreshFlightKey is the only singleflight key: there is one session per client
const refreshFlightKey = "access-token"

// Logout reasons, used as metric labels and log fields
const (
	logoutAccountBlocked = "account_blocked"
	logoutRefreshFailed  = "refresh_failed"
	logoutUser           = "user"
)

// refreshCoordinator owns the single in-flight refresh and the callers
// suspended on it. Every caller that joins a flight before it settles gets
// the same token or the same error.
type refreshCoordinator struct {
	store    TokenStore
	refresh  RefreshFunc
	observer func(refreshing bool)
	onLogout func()
	log      *slog.Logger

	group singleflight.Group

	// notifyMu orders observer callbacks the same way as the state changes
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     RefreshState
	waiting   int
	loggedOut bool
}

func newRefreshCoordinator(store TokenStore, refresh RefreshFunc, observer func(bool), onLogout func(), log *slog.Logger) *refreshCoordinator {
	return &refreshCoordinator{
		store:    store,
		refresh:  refresh,
		observer: observer,
		onLogout: onLogout,
		log:      log,
	}
}

// await joins the in-flight refresh, starting one if none is running, and
// blocks until it settles. Joining happens under c.mu so the waiter count
// always matches the callers attached to the current flight. The last waiter
// to receive the result moves the coordinator back to idle.
func (c *refreshCoordinator) await(ctx context.Context) (string, error) {
	c.mu.Lock()
	c.waiting++
	metrics.SessionRefreshWaiters.Inc()
	ch := c.group.DoChan(refreshFlightKey, func() (interface{}, error) {
		// the refresh always runs to settlement, whoever started it
		return c.run(context.WithoutCancel(ctx))
	})
	c.mu.Unlock()

	res := <-ch
	metrics.SessionRefreshWaiters.Dec()
	c.leave()

	if res.Err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, res.Err)
	}
	return res.Val.(string), nil
}

// run performs one refresh call. It is executed by singleflight exactly once
// per flight.
func (c *refreshCoordinator) run(ctx context.Context) (interface{}, error) {
	c.enter()
	start := time.Now()

	c.log.Info("access token expired, refreshing")

	token, err := c.refresh(ctx)
	if err == nil {
		if saveErr := c.store.SaveToken(token); saveErr != nil {
			err = fmt.Errorf("failed to store refreshed token: %w", saveErr)
		}
	}

	if err != nil {
		outcome, reason := "failure", logoutRefreshFailed
		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) && refreshErr.Blocked() {
			outcome, reason = "blocked", logoutAccountBlocked
			c.log.Error("session terminated: account blocked",
				slog.Int("status", refreshErr.StatusCode),
				slog.String("message", refreshErr.Message))
		} else {
			c.log.Error("token refresh failed", slog.String("error", err.Error()))
		}
		metrics.RecordRefresh(outcome, time.Since(start))
		c.forceLogout(reason)
		return nil, err
	}

	c.rearm()
	metrics.RecordRefresh("success", time.Since(start))
	c.log.Info("successfully refreshed token",
		slog.String("token_prefix", tokenPreview(token)),
		slog.Duration("took", time.Since(start)))
	return token, nil
}

// forceLogout clears the credential store on every call. The logout handler
// fires at most once per authenticated session; rearm opens it again.
func (c *refreshCoordinator) forceLogout(reason string) bool {
	if err := c.store.ClearToken(); err != nil {
		c.log.Warn("failed to clear credentials", slog.String("error", err.Error()))
	}

	c.mu.Lock()
	if c.loggedOut {
		c.mu.Unlock()
		c.log.Debug("logout already triggered", slog.String("reason", reason))
		return false
	}
	c.loggedOut = true
	c.mu.Unlock()

	metrics.SessionLogouts.WithLabelValues(reason).Inc()
	c.log.Warn("session logged out", slog.String("reason", reason))

	if c.onLogout != nil {
		c.onLogout()
	}
	return true
}

// rearm marks the session as authenticated again after a token was stored
func (c *refreshCoordinator) rearm() {
	c.mu.Lock()
	c.loggedOut = false
	c.mu.Unlock()
}

// enter marks a flight as running. A flight that starts while waiters of the
// previous one are still draining does not notify again.
func (c *refreshCoordinator) enter() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	started := c.state == RefreshIdle
	c.state = RefreshRunning
	c.mu.Unlock()

	if started {
		c.notify(true)
	}
}

// leave detaches one waiter. Once the last one has its result the
// coordinator is idle and observers are told.
func (c *refreshCoordinator) leave() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.waiting--
	settled := c.waiting == 0 && c.state == RefreshRunning
	if settled {
		c.state = RefreshIdle
	}
	c.mu.Unlock()

	if settled {
		c.notify(false)
	}
}

// State returns the current refresh state
func (c *refreshCoordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Waiting returns the number of callers attached to the current flight
func (c *refreshCoordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

func (c *refreshCoordinator) notify(refreshing bool) {
	if c.observer != nil {
		c.observer(refreshing)
	}
}
