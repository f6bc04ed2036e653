package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// storedCookie is the on-disk form of one cookie
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) expired(now time.Time) bool {
	return !s.Expires.IsZero() && now.After(s.Expires)
}

func (s storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HttpOnly,
	}
}

// CookieJar is an http.CookieJar that persists its cookies to a file, so the
// refresh session cookie survives between CLI invocations. Session cookies
// without an expiry are persisted as well.
type CookieJar struct {
	path string

	mu      sync.Mutex
	jar     *cookiejar.Jar
	origins map[string][]storedCookie
}

var _ http.CookieJar = (*CookieJar)(nil)

// DefaultCookiePath returns the cookie file for a CLI context
func DefaultCookiePath(contextName string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("cookies-%s.json", contextName)), nil
}

// NewCookieJar loads the jar stored at path. A missing file yields an empty jar.
func NewCookieJar(path string) (*CookieJar, error) {
	j := &CookieJar{path: path}
	if err := j.reset(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	var origins map[string][]storedCookie
	if err := json.Unmarshal(data, &origins); err != nil {
		slog.Warn("ignoring unreadable cookie file",
			slog.String("component", "credentials"),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return j, nil
	}

	now := time.Now()
	for origin, stored := range origins {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		var live []*http.Cookie
		for _, s := range stored {
			if s.expired(now) {
				continue
			}
			live = append(live, s.cookie())
			j.remember(origin, s)
		}
		j.jar.SetCookies(u, live)
	}
	return j, nil
}

func (j *CookieJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.jar = jar
	j.origins = make(map[string][]storedCookie)
	return nil
}

// SetCookies implements http.CookieJar and writes the jar to disk
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := originOf(u)
	now := time.Now()
	for _, c := range cookies {
		s := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			s.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.forget(origin, s.Name, s.Path)
		if c.MaxAge < 0 || s.expired(now) {
			continue
		}
		j.remember(origin, s)
	}

	if err := j.save(); err != nil {
		slog.Warn("failed to persist cookies",
			slog.String("component", "credentials"),
			slog.String("error", err.Error()))
	}
}

// Cookies implements http.CookieJar
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie and removes the file
func (j *CookieJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.reset(); err != nil {
		return err
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookies: %w", err)
	}
	return nil
}

func (j *CookieJar) remember(origin string, s storedCookie) {
	j.origins[origin] = append(j.origins[origin], s)
}

func (j *CookieJar) forget(origin, name, path string) {
	kept := j.origins[origin][:0]
	for _, s := range j.origins[origin] {
		if s.Name == name && s.Path == path {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(j.origins, origin)
		return
	}
	j.origins[origin] = kept
}

func (j *CookieJar) save() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(j.origins, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	return nil
}

// originOf reduces u to scheme and host, the key cookies are restored under
func originOf(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
