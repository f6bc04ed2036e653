package authstub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/storefront/internal/config"
	"github.com/devilmonastery/storefront/internal/pkg/idgen"
	"github.com/devilmonastery/storefront/internal/pkg/logger"
	"github.com/devilmonastery/storefront/internal/pkg/metrics"
)

// Messages returned in error bodies. The client keys session handling off
// these texts, so they mirror what the production API sends.
const (
	MsgTokenExpired       = "Token expired"
	MsgInvalidToken       = "Invalid token"
	MsgAuthRequired       = "Authentication required"
	MsgAccountBlocked     = "Your account has been blocked"
	MsgRefreshExpired     = "Refresh token expired"
	MsgInvalidCredentials = "Invalid email or password"
	MsgForbidden          = "Insufficient permissions"
)

// Server is a development identity server implementing the storefront
// auth endpoints: password login, cookie refresh, logout and account
// blocking. It is a test harness, not a production identity provider.
type Server struct {
	cfg      *config.Config
	jwt      *JWTManager
	users    *UserStore
	sessions *SessionManager
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithClock replaces time.Now for token and session expiry
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// New creates a stub server from configuration
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "authstub")

	s.jwt = NewJWTManager(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Lifetime, s.now)
	s.users = NewUserStore(cfg.Users)
	s.sessions = NewSessionManager(cfg.Auth.Session, s.now)
	return s
}

// Users returns the account store
func (s *Server) Users() *UserStore {
	return s.users
}

// Handler returns the HTTP handler with every route and middleware
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix(s.cfg.Server.PathPrefix).Subrouter()

	api.HandleFunc("/Auth/Login", s.handleLogin).Methods("POST")
	api.HandleFunc("/Auth/Refresh-Token", s.handleRefresh).Methods("POST")
	api.HandleFunc("/Auth/Logout", s.handleLogout).Methods("POST")

	api.Handle("/Users/me", s.RequireAuth(http.HandlerFunc(s.handleMe))).Methods("GET")
	api.Handle("/Admin/Users/{id}/block", s.RequireAdmin(s.handleSetBlocked(true))).Methods("POST")
	api.Handle("/Admin/Users/{id}/unblock", s.RequireAdmin(s.handleSetBlocked(false))).Methods("POST")

	return LogRequest(s.log, router)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.log.Info("login failed", slog.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, MsgInvalidCredentials)
		return
	}
	if user.Blocked {
		logger.WithUser(s.log, user.ID).Info("login refused for blocked user")
		writeError(w, http.StatusForbidden, MsgAccountBlocked)
		return
	}

	sessionID, err := s.sessions.Start(w, r, user.ID)
	if err != nil {
		s.log.Error("failed to start session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	s.issueToken(w, user, sessionID, "login")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	rs, err := s.sessions.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, MsgRefreshExpired)
		return
	}

	user, err := s.users.Get(rs.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, MsgRefreshExpired)
		return
	}
	if user.Blocked {
		logger.WithUser(s.log, user.ID).Info("refresh refused for blocked user")
		writeError(w, http.StatusForbidden, MsgAccountBlocked)
		return
	}

	if started, err := idgen.IssuedAt(rs.ID); err == nil {
		logger.WithUser(s.log, user.ID).Debug("refreshing session",
			slog.String("session_id", rs.ID),
			slog.Duration("session_age", s.now().Sub(started)))
	}

	s.issueToken(w, user, rs.ID, "refresh")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(w, r); err != nil {
		s.log.Warn("failed to end session", slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, MsgAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: user})
}

func (s *Server) handleSetBlocked(blocked bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		user, err := s.users.SetBlocked(id, blocked)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "User not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.WithUser(s.log, id).Info("user block state changed", slog.Bool("blocked", blocked))
		writeJSON(w, http.StatusOK, envelope{Data: user})
	})
}

func (s *Server) issueToken(w http.ResponseWriter, user *User, sessionID, grant string) {
	token, expiresAt, err := s.jwt.GenerateToken(user, sessionID)
	if err != nil {
		s.log.Error("failed to issue token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	metrics.StubTokensIssued.WithLabelValues(grant).Inc()

	writeJSON(w, http.StatusOK, envelope{Data: tokenResponse{AccessToken: token, ExpiresAt: expiresAt}})
}

// envelope is the response shape of the storefront API
type envelope struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message})
}
