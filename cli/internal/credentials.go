package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/storefront/internal/client"
	"github.com/devilmonastery/storefront/internal/credentials"
)

// Session bundles the API client of one CLI context with the stores it
// persists into
type Session struct {
	Client *client.Client
	Store  client.TokenStore
	Jar    *credentials.CookieJar

	redis *redis.Client

	// set by auth logout so the handler stays quiet
	userLogout bool
}

// Close releases backend connections
func (s *Session) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// newTokenStore opens the credential backend configured for a context
func newTokenStore(contextName string, ctx *Context) (client.TokenStore, *redis.Client, error) {
	switch ctx.Backend() {
	case BackendKeyring:
		return credentials.NewKeyringStore(contextName), nil, nil

	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: ctx.Credentials.RedisAddr})
		return credentials.NewRedisStore(rdb, ctx.Credentials.RedisKey, 0), rdb, nil

	case BackendFile:
		path, err := credentials.DefaultPath(contextName)
		if err != nil {
			return nil, nil, err
		}
		return credentials.NewFileStore(path), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown credentials backend %q", ctx.Credentials.Backend)
	}
}

// NewSession builds the session client for a CLI context. When the session
// ends underneath a command (refresh rejected, account blocked) the refresh
// cookie is dropped and the user is told to log in again.
func NewSession(contextName string, ctx *Context, log *slog.Logger) (*Session, error) {
	if err := ctx.Validate(); err != nil {
		return nil, fmt.Errorf("context %q: %w", contextName, err)
	}

	store, rdb, err := newTokenStore(contextName, ctx)
	if err != nil {
		return nil, err
	}

	cookiePath, err := credentials.DefaultCookiePath(contextName)
	if err != nil {
		return nil, err
	}
	jar, err := credentials.NewCookieJar(cookiePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	s := &Session{Store: store, Jar: jar, redis: rdb}

	onLogout := func() {
		if err := jar.Clear(); err != nil {
			log.Warn("failed to clear session cookies", slog.String("error", err.Error()))
		}
		if s.userLogout {
			return
		}
		fmt.Fprintf(os.Stderr, "Session ended. Please run 'storefront auth login' to sign in again.\n")
	}

	s.Client, err = client.NewClient(ctx.API.BaseURL, store,
		client.WithLogger(log),
		client.WithTimeout(ctx.Timeout()),
		client.WithRefreshPath(ctx.RefreshPath()),
		client.WithCookieJar(jar),
		client.WithLogoutHandler(onLogout),
		client.WithRefreshObserver(func(refreshing bool) {
			if refreshing {
				log.Debug("refreshing access token")
			}
		}),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return s, nil
}
