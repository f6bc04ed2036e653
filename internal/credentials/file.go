package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devilmonastery/storefront/internal/client"
)

// Credentials is the on-disk record of a session
type Credentials struct {
	AccessToken string    `json:"access_token"`
	Email       string    `json:"email,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
	// The refresh session lives in an HTTP-only cookie, see CookieJar
}

// IsExpired checks if the token is expired
func (c *Credentials) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// NeedsRefresh checks if the token expires within the next 5 minutes
func (c *Credentials) NeedsRefresh() bool {
	return !c.ExpiresAt.IsZero() && time.Now().Add(5*time.Minute).After(c.ExpiresAt)
}

// ConfigDir returns the directory holding per-context credential files
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "storefront"), nil
}

// DefaultPath returns the credentials file for a CLI context
func DefaultPath(contextName string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("credentials-%s.json", contextName)), nil
}

// FileStore implements client.TokenStore using a JSON file readable only by
// the owner
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ client.TokenStore = (*FileStore)(nil)

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the credentials file path
func (f *FileStore) Path() string {
	return f.path
}

// GetToken returns the current access token from file
func (f *FileStore) GetToken() (string, error) {
	creds, err := f.Load()
	if err != nil {
		return "", err
	}
	if creds.AccessToken == "" {
		return "", client.ErrNoToken
	}
	return creds.AccessToken, nil
}

// SaveToken writes the token to file, keeping the other recorded fields
func (f *FileStore) SaveToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		slog.Debug("creating new credentials",
			slog.String("component", "credentials"),
			slog.String("load_error", err.Error()))
		creds = &Credentials{}
	}

	creds.AccessToken = token
	creds.SavedAt = time.Now().UTC()
	creds.ExpiresAt = time.Time{}

	if info, err := InspectToken(token); err != nil {
		slog.Debug("access token is not a JWT",
			slog.String("component", "credentials"),
			slog.String("error", err.Error()))
	} else {
		creds.ExpiresAt = info.ExpiresAt
		if info.Email != "" {
			creds.Email = info.Email
		}
	}

	return f.save(creds)
}

// ClearToken removes the credentials file
func (f *FileStore) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// Load reads the full credentials record
func (f *FileStore) Load() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) load() (*Credentials, error) {
	slog.Debug("loading credentials from file",
		slog.String("component", "credentials"),
		slog.String("path", f.path))

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, client.ErrNoToken
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

func (f *FileStore) save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// write-then-rename so a concurrent reader never sees a partial file
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}
