package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devilmonastery/storefront/internal/client"
)

// Credential backends
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
)

// Context represents a named configuration context (like kubectl contexts)
type Context struct {
	API struct {
		BaseURL     string        `yaml:"base_url"`
		RefreshPath string        `yaml:"refresh_path,omitempty"`
		Timeout     time.Duration `yaml:"timeout,omitempty"`
	} `yaml:"api"`
	Credentials struct {
		Backend   string `yaml:"backend,omitempty"`
		RedisAddr string `yaml:"redis_addr,omitempty"`
		RedisKey  string `yaml:"redis_key,omitempty"`
	} `yaml:"credentials"`
}

// Config represents the CLI configuration with multiple contexts
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// NewContext returns a context for baseURL with default settings
func NewContext(baseURL string) *Context {
	ctx := &Context{}
	ctx.API.BaseURL = baseURL
	ctx.API.RefreshPath = client.DefaultRefreshPath
	ctx.API.Timeout = client.DefaultTimeout
	ctx.Credentials.Backend = BackendFile
	return ctx
}

// DefaultConfig returns the default configuration with a "dev" context
// pointing at a local stub server
func DefaultConfig() *Config {
	return &Config{
		CurrentContext: "dev",
		Contexts: map[string]*Context{
			"dev": NewContext("http://localhost:8080/api"),
		},
	}
}

// Validate checks the settings of a context
func (ctx *Context) Validate() error {
	u, err := url.Parse(ctx.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q", ctx.API.BaseURL)
	}
	if ctx.API.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	switch ctx.Backend() {
	case BackendFile, BackendKeyring:
	case BackendRedis:
		if ctx.Credentials.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis credentials backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend %q (must be file, keyring or redis)", ctx.Credentials.Backend)
	}
	return nil
}

// Backend returns the credential backend, defaulting to file
func (ctx *Context) Backend() string {
	if ctx.Credentials.Backend == "" {
		return BackendFile
	}
	return ctx.Credentials.Backend
}

// RefreshPath returns the refresh endpoint path, defaulting to the API's
func (ctx *Context) RefreshPath() string {
	if ctx.API.RefreshPath == "" {
		return client.DefaultRefreshPath
	}
	return ctx.API.RefreshPath
}

// Timeout returns the request timeout, defaulting to the client's
func (ctx *Context) Timeout() time.Duration {
	if ctx.API.Timeout == 0 {
		return client.DefaultTimeout
	}
	return ctx.API.Timeout
}

// GetCurrentContext returns the current active context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// GetContext returns a context by name
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q does not exist", name)
	}
	return ctx, nil
}

// SetCurrentContext sets the current active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	c.CurrentContext = name
	return nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, ctx *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	c.Contexts[name] = ctx
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if name == c.CurrentContext {
		return fmt.Errorf("cannot delete current context %q", name)
	}
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	delete(c.Contexts, name)
	return nil
}

// GetConfigPath returns the path to the config file. STOREFRONT_CONFIG
// overrides the default ~/.storefront.
func GetConfigPath() (string, error) {
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".storefront"), nil
}

// LoadConfig loads configuration from ~/.storefront
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config file doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaultConfig := DefaultConfig()
		if err := SaveConfig(defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure we have a valid current context
	if config.CurrentContext == "" && len(config.Contexts) > 0 {
		for name := range config.Contexts {
			config.CurrentContext = name
			break
		}
	}

	return &config, nil
}

// SaveConfig saves configuration to ~/.storefront
func SaveConfig(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
