package authstub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/storefront/internal/pkg/logger"
	"github.com/devilmonastery/storefront/internal/pkg/metrics"
)

type contextKey struct{}

// UserFromContext returns the authenticated user set by RequireAuth
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	return user, ok
}

// RequireAuth validates the bearer token and loads the current user.
// Expired tokens answer 401 "Token expired"; blocked accounts answer 403.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, MsgAuthRequired)
			return
		}

		claims, err := s.jwt.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, MsgTokenExpired)
				return
			}
			writeError(w, http.StatusUnauthorized, MsgInvalidToken)
			return
		}

		user, err := s.users.Get(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, MsgInvalidToken)
			return
		}
		if user.Blocked {
			writeError(w, http.StatusForbidden, MsgAccountBlocked)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

// RequireAdmin is RequireAuth plus an admin role check
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, MsgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest logs requests and records HTTP metrics labelled by route template
func LogRequest(log *slog.Logger, router *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip health checks and scrapes to reduce noise
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			router.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		metrics.HTTPActiveRequests.Inc()
		defer metrics.HTTPActiveRequests.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default if WriteHeader not called
		}

		router.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := routeTemplate(router, r)
		metrics.RecordHTTPRequest(r.Method, route, wrapped.statusCode, duration)

		reqLog := logger.WithDuration(logger.WithHTTPRequest(log, r.Method, r.URL.Path), duration)
		attrs := []any{
			slog.String("route", route),
			slog.Int("status", wrapped.statusCode),
			slog.Int64("bytes", wrapped.written),
		}
		if id := r.Header.Get("X-Request-ID"); id != "" {
			reqLog = logger.WithRequest(reqLog, id)
		}
		if wrapped.statusCode >= 400 {
			reqLog.Warn("request failed", attrs...)
			return
		}
		reqLog.Info("request", attrs...)
	})
}

// routeTemplate returns the matched mux path template, falling back to a
// fixed label so unknown paths do not blow up metric cardinality
func routeTemplate(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
