package client

import "sync"

// TokenStore is the credential store holding the current access token.
// Different implementations can keep the token in memory, files, the OS
// keychain, Redis, etc. Implementations must be safe for concurrent use.
type TokenStore interface {
	// GetToken returns the current access token, or ErrNoToken
	GetToken() (token string, err error)

	// SaveToken replaces the stored access token
	SaveToken(token string) error

	// ClearToken removes stored credentials
	ClearToken() error
}

// MemoryStore implements TokenStore for a single process lifetime
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a store, optionally seeded with a token
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// GetToken returns the token held in memory
func (m *MemoryStore) GetToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// SaveToken replaces the token held in memory
func (m *MemoryStore) SaveToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// ClearToken forgets the token
func (m *MemoryStore) ClearToken() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// tokenPreview shortens a token for log output
func tokenPreview(token string) string {
	if len(token) > 12 {
		return token[:12] + "..."
	}
	return token
}
