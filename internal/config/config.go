package config

import (
	"fmt"
	"time"
)

// Config represents the stub identity server configuration
type Config struct {
	Server      ServerConfig `yaml:"server"`
	Auth        AuthConfig   `yaml:"auth"`
	Users       []UserConfig `yaml:"users"`
	Environment string       `yaml:"environment" default:"local"` // local, dev, test
	NodeID      int64        `yaml:"node_id" default:"1"`         // snowflake node for session ids
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Host       string `yaml:"host" default:"localhost"`
	Port       int    `yaml:"port" default:"8080"`
	PathPrefix string `yaml:"path_prefix" default:"/api"` // API routes are mounted below this prefix
}

// Address returns host:port for net.Listen
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds token and session configuration
type AuthConfig struct {
	JWT     JWTConfig     `yaml:"jwt"`
	Session SessionConfig `yaml:"session"`
}

// JWTConfig holds access token configuration
type JWTConfig struct {
	SigningKey string        `yaml:"signing_key"`                 // Secret key for signing JWTs
	Issuer     string        `yaml:"issuer" default:"storefront"` // iss claim
	Lifetime   time.Duration `yaml:"lifetime" default:"15m"`      // Access tokens are short lived
}

// SessionConfig holds the refresh session cookie configuration
type SessionConfig struct {
	Secret     string        `yaml:"secret"` // Cookie signing key
	CookieName string        `yaml:"cookie_name" default:"refresh_session"`
	Lifetime   time.Duration `yaml:"lifetime" default:"168h"` // Default 7 days
	Secure     bool          `yaml:"secure"`                  // Set the Secure flag (HTTPS only)
}

// UserConfig is a seeded account
type UserConfig struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`           // bcrypt, see `storefront-stub hash-password`
	Role         string `yaml:"role" default:"customer"` // customer, admin
	Blocked      bool   `yaml:"blocked"`
}
