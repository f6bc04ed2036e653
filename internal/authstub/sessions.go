package authstub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/storefront/internal/config"
	"github.com/devilmonastery/storefront/internal/pkg/idgen"
)

const sessionIDKey = "sid"

var (
	ErrNoSession      = errors.New("no refresh session")
	ErrSessionExpired = errors.New("refresh session expired")
)

// refreshSession is the server-side record behind a refresh cookie
type refreshSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// SessionManager issues and resolves refresh sessions. The cookie carries
// only the signed session id; state lives in memory so logout can revoke it.
type SessionManager struct {
	store      *sessions.CookieStore
	cookieName string
	lifetime   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*refreshSession
}

// NewSessionManager creates a session manager from configuration
func NewSessionManager(cfg config.SessionConfig, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}

	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// also bounds the signed timestamp inside the cookie
	store.MaxAge(int(cfg.Lifetime.Seconds()))

	return &SessionManager{
		store:      store,
		cookieName: cfg.CookieName,
		lifetime:   cfg.Lifetime,
		now:        now,
		sessions:   make(map[string]*refreshSession),
	}
}

// Start creates a refresh session for the user and sets its cookie
func (m *SessionManager) Start(w http.ResponseWriter, r *http.Request, userID string) (string, error) {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		// a cookie signed with another key; start fresh
		session, _ = m.store.New(r, m.cookieName)
	}

	rs := &refreshSession{
		ID:        idgen.GenerateID(),
		UserID:    userID,
		ExpiresAt: m.now().Add(m.lifetime),
	}

	m.mu.Lock()
	if old, ok := session.Values[sessionIDKey].(string); ok {
		delete(m.sessions, old)
	}
	m.sessions[rs.ID] = rs
	m.mu.Unlock()

	session.Values[sessionIDKey] = rs.ID
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return rs.ID, nil
}

// Resolve returns the live refresh session named by the request cookie
func (m *SessionManager) Resolve(r *http.Request) (*refreshSession, error) {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	id, ok := session.Values[sessionIDKey].(string)
	if !ok {
		return nil, ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	if m.now().After(rs.ExpiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionExpired
	}
	out := *rs
	return &out, nil
}

// End revokes the request's refresh session and expires its cookie
func (m *SessionManager) End(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		session, _ = m.store.New(r, m.cookieName)
	}

	if id, ok := session.Values[sessionIDKey].(string); ok {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}

	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Active returns the number of live refresh sessions
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
