package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// RefreshFunc exchanges the ambient session for a new access token
type RefreshFunc func(ctx context.Context) (string, error)

// tokenEnvelope matches {"data":{"accessToken":"..."}} as well as a bare
// {"accessToken":"..."}
type tokenEnvelope struct {
	Data struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}

// parseAccessToken extracts the access token from a login or refresh body
func parseAccessToken(body []byte) (string, error) {
	var env tokenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAccessToken, err)
	}

	token := strings.TrimSpace(env.Data.AccessToken)
	if token == "" {
		token = strings.TrimSpace(env.AccessToken)
	}
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// cookieRefresher calls the refresh endpoint with the session cookie held in
// the shared cookie jar. It uses its own http.Client so the call never passes
// through AuthTransport.
type cookieRefresher struct {
	httpClient *http.Client
	url        string
	log        *slog.Logger
}

func newCookieRefresher(httpClient *http.Client, url string, log *slog.Logger) *cookieRefresher {
	return &cookieRefresher{
		httpClient: httpClient,
		url:        url,
		log:        log,
	}
}

// Refresh posts to the refresh endpoint and returns the new access token
func (r *cookieRefresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	r.log.Debug("calling refresh endpoint", slog.String("url", r.url))
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrRefreshFailed, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &RefreshError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(body),
		}
	}

	token, err := parseAccessToken(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return token, nil
}
