package client

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/devilmonastery/storefront/internal/pkg/logger"
	"github.com/devilmonastery/storefront/internal/pkg/metrics"
)

// RequestIDHeader carries a per-call id; a replay reuses the id of the
// attempt it replaces
const RequestIDHeader = "X-Request-ID"

// AuthTransport is an http.RoundTripper that attaches the bearer token,
// classifies failed responses and renews the session on expiry. Expired
// requests wait on the shared refresh and are replayed exactly once.
type AuthTransport struct {
	base        http.RoundTripper
	store       TokenStore
	coordinator *refreshCoordinator
	refreshPath string
	log         *slog.Logger
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig, err := snapshotRequest(req)
	if err != nil {
		return nil, err
	}

	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := logger.WithRequest(t.log, reqID)

	resp, f, err := t.dispatch(orig, reqID, t.currentToken(), log)
	kind := classifyFailure(f)

	switch kind {
	case FailureBlocked:
		return nil, t.blocked(resp, f, log)

	case FailureExpired:
		closeResponse(resp)
		log.Info("request unauthorized, waiting for token refresh",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path))

		token, err := t.coordinator.await(req.Context())
		if err != nil {
			metrics.SessionReplays.WithLabelValues("refresh_failed").Inc()
			return nil, err
		}

		resp, f, err = t.dispatch(orig.markRetried(), reqID, token, log)
		kind = classifyFailure(f)
		t.recordReplay(kind, err)
		if kind == FailureBlocked {
			return nil, t.blocked(resp, f, log)
		}
		if kind == FailureAlreadyRetried {
			log.Warn("request still unauthorized after token refresh",
				slog.String("path", req.URL.Path))
		}
		return resp, err

	default:
		return resp, err
	}
}

// dispatch sends one attempt of orig with the given token
func (t *AuthTransport) dispatch(orig *originalRequest, reqID, token string, log *slog.Logger) (*http.Response, failure, error) {
	attempt := orig.build()
	attempt.Header.Set(RequestIDHeader, reqID)
	attempt = annotateRequest(attempt, token, t.refreshPath)

	resp, err := t.base.RoundTrip(attempt)
	if err != nil {
		resp = nil
	}

	f := newFailure(orig, resp, t.refreshPath)
	if kind := classifyFailure(f); kind != FailureNone {
		metrics.SessionFailures.WithLabelValues(kind.String()).Inc()
		log.Debug("request failed",
			slog.String("kind", kind.String()),
			slog.Int("status", f.statusCode),
			slog.Bool("retried", orig.retried))
	}
	return resp, f, err
}

// blocked terminates the session and returns the error handed to the caller
func (t *AuthTransport) blocked(resp *http.Response, f failure, log *slog.Logger) error {
	closeResponse(resp)
	log.Error("account blocked, terminating session",
		slog.Int("status", f.statusCode),
		slog.String("message", f.message))
	t.coordinator.forceLogout(logoutAccountBlocked)
	return &AccountBlockedError{StatusCode: f.statusCode, Message: f.message}
}

// currentToken reads the store for one attempt. A missing token is not an
// error: the request is sent without credentials.
func (t *AuthTransport) currentToken() string {
	token, err := t.store.GetToken()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			t.log.Warn("failed to read access token", slog.String("error", err.Error()))
		}
		return ""
	}
	return token
}

func (t *AuthTransport) recordReplay(kind FailureKind, err error) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case kind != FailureNone:
		outcome = kind.String()
	}
	metrics.SessionReplays.WithLabelValues(outcome).Inc()
}

// closeResponse drains and closes a response that will not reach the caller
func closeResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
