package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// AuthConfig maps roles to credentials and names the login endpoint.
// It is loaded once at startup and passed to the components that need it.
type AuthConfig struct {
	LoginURL string                `json:"login_url"`
	Users    map[string]Credential `json:"users"`
}

// LoadAuthConfig reads an auth config file.
func LoadAuthConfig(path string) (*AuthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading auth config: %w", err)
	}

	var cfg AuthConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding auth config %s: %w", path, err)
	}
	if cfg.Users == nil {
		cfg.Users = make(map[string]Credential)
	}
	return &cfg, nil
}

// LoadAuthConfigOrEmpty reads an auth config file and falls back to an empty config
// if the file is missing or malformed. Credentials are then only available from the environment.
func LoadAuthConfigOrEmpty(path string, logger *slog.Logger) *AuthConfig {
	cfg, err := LoadAuthConfig(path)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Auth config unavailable, using empty config", slog.String("path", path), slog.String("error", err.Error()))
		return &AuthConfig{Users: make(map[string]Credential)}
	}
	return cfg
}

// User returns the configured credential for role. Roles are matched case-insensitively.
func (c *AuthConfig) User(role string) (Credential, bool) {
	if c == nil {
		return Credential{}, false
	}
	if cred, ok := c.Users[role]; ok {
		return cred, true
	}
	for name, cred := range c.Users {
		if strings.EqualFold(name, role) {
			return cred, true
		}
	}
	return Credential{}, false
}
