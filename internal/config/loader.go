package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// envVarPattern matches ${VAR}. Bare $ is left alone so bcrypt hashes
// survive expansion.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars expands environment variables in the format ${VAR}
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./stub.yaml",
	"./stub.yml",
	"./configs/stub.yaml",
	"./configs/stub.yml",
	"/etc/storefront/stub.yaml",
	"/etc/storefront/stub.yml",
}

// minKeyLength is the shortest accepted signing key or session secret
const minKeyLength = 32

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "localhost",
			Port:       8080,
			PathPrefix: "/api",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Issuer:   "storefront",
				Lifetime: 15 * time.Minute,
			},
			Session: SessionConfig{
				CookieName: "refresh_session",
				Lifetime:   7 * 24 * time.Hour,
			},
		},
		Environment: "local",
		NodeID:      1,
	}
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	config := Default()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		fmt.Fprintf(os.Stderr, "[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	} else {
		fmt.Fprintf(os.Stderr, "[CONFIG] No config file found, using defaults\n")
	}

	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromDefaults loads configuration using only defaults and environment variables
func LoadFromDefaults() (*Config, error) {
	return Load("")
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// applyDefaults fills fields a config file may have zeroed out
func applyDefaults(config *Config) {
	if config.Server.PathPrefix != "" {
		config.Server.PathPrefix = "/" + strings.Trim(config.Server.PathPrefix, "/")
	}
	for i := range config.Users {
		u := &config.Users[i]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Role == "" {
			u.Role = "customer"
		}
		if u.ID == "" {
			u.ID = fmt.Sprintf("%d", i+1)
		}
	}
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if len(config.Auth.JWT.SigningKey) < minKeyLength {
		return fmt.Errorf("auth.jwt.signing_key must be at least %d characters", minKeyLength)
	}
	if config.Auth.JWT.Lifetime <= 0 {
		return fmt.Errorf("auth.jwt.lifetime must be positive")
	}

	if len(config.Auth.Session.Secret) < minKeyLength {
		return fmt.Errorf("auth.session.secret must be at least %d characters", minKeyLength)
	}
	if config.Auth.Session.CookieName == "" {
		return fmt.Errorf("auth.session.cookie_name is required")
	}
	if config.Auth.Session.Lifetime < config.Auth.JWT.Lifetime {
		return fmt.Errorf("auth.session.lifetime must not be shorter than auth.jwt.lifetime")
	}

	if config.NodeID < 0 || config.NodeID > 1023 {
		return fmt.Errorf("node_id must be between 0 and 1023")
	}

	seen := make(map[string]bool)
	for i, u := range config.Users {
		if u.Email == "" {
			return fmt.Errorf("users[%d].email is required", i)
		}
		if u.PasswordHash == "" {
			return fmt.Errorf("users[%d].password_hash is required", i)
		}
		if u.Role != "customer" && u.Role != "admin" {
			return fmt.Errorf("users[%d].role must be customer or admin", i)
		}
		if seen[u.Email] {
			return fmt.Errorf("duplicate user %s", u.Email)
		}
		seen[u.Email] = true
	}

	return nil
}
