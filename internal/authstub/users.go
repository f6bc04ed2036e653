package authstub

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/devilmonastery/storefront/internal/config"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is a stub account. Values handed out are copies.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	Blocked bool   `json:"blocked"`

	passwordHash []byte
}

// UserStore holds the seeded accounts in memory
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]*User
}

// NewUserStore builds the store from configuration
func NewUserStore(users []config.UserConfig) *UserStore {
	s := &UserStore{
		byID:    make(map[string]*User, len(users)),
		byEmail: make(map[string]*User, len(users)),
	}
	for _, u := range users {
		user := &User{
			ID:           u.ID,
			Email:        strings.ToLower(u.Email),
			Name:         u.Name,
			Role:         u.Role,
			Blocked:      u.Blocked,
			passwordHash: []byte(u.PasswordHash),
		}
		s.byID[user.ID] = user
		s.byEmail[user.Email] = user
	}
	return s
}

// Authenticate checks a password. Blocked users authenticate successfully;
// callers decide what a blocked account may do.
func (s *UserStore) Authenticate(email, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.Get(user.ID)
}

// Get returns a copy of the user
func (s *UserStore) Get(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// SetBlocked blocks or unblocks a user
func (s *UserStore) SetBlocked(id string, blocked bool) (*User, error) {
	s.mu.Lock()
	user, ok := s.byID[id]
	if ok {
		user.Blocked = blocked
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrUserNotFound
	}
	return s.Get(id)
}

// HashPassword hashes a password for the users section of the config
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
