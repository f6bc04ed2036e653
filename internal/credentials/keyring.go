package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/devilmonastery/storefront/internal/client"
)

const (
	baseServiceName = "storefront"
	// keyringUserPrefix is not a credential, only the account name of the entry
	keyringUserPrefix = "access-token"
)

// keyringServiceName allows isolation in tests/dev through STOREFRONT_KEYRING_NAMESPACE
func keyringServiceName() string {
	if ns := strings.TrimSpace(os.Getenv("STOREFRONT_KEYRING_NAMESPACE")); ns != "" {
		return baseServiceName + "-" + ns
	}
	return baseServiceName
}

// KeyringStore implements client.TokenStore on the OS keychain
type KeyringStore struct {
	service string
	user    string
}

var _ client.TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a keychain entry scoped to a CLI context
func NewKeyringStore(contextName string) *KeyringStore {
	return &KeyringStore{
		service: keyringServiceName(),
		user:    keyringUserPrefix + "-" + contextName,
	}
}

// GetToken reads the token from the keychain
func (k *KeyringStore) GetToken() (string, error) {
	token, err := keyring.Get(k.service, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", client.ErrNoToken
		}
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	if token == "" {
		return "", client.ErrNoToken
	}
	return token, nil
}

// SaveToken writes the token to the keychain
func (k *KeyringStore) SaveToken(token string) error {
	if err := keyring.Set(k.service, k.user, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// ClearToken deletes the keychain entry
func (k *KeyringStore) ClearToken() error {
	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
