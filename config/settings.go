package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Authentication modes for obtaining a fresh session.
const (
	AuthModeAPI     = "api"
	AuthModeBrowser = "browser"
)

// Settings holds process-wide settings read from the environment.
type Settings struct {
	// CookieDir is the directory with cached cookie files.
	CookieDir string `envconfig:"COOKIE_DIR" default:"cookies"`
	// TargetUser is the default role or user to authenticate.
	TargetUser string `envconfig:"TARGET_USER" default:"admin"`
	// AuthMode selects how a fresh session is obtained ("api" or "browser").
	AuthMode string `envconfig:"AUTH_MODE" default:"api"`
	// Headless runs the browser without a window.
	Headless bool `envconfig:"TEST_HEADLESS" default:"true"`

	AuthConfigPath string `envconfig:"AUTH_CONFIG" default:"auth_config.json"`
	CredentialsCSV string `envconfig:"CREDENTIALS_CSV"`

	// BaseURL is the main site under test.
	BaseURL string `envconfig:"BASE_URL" default:"https://bll.by"`
	// Subdomains are additional sites checked by navigation tests, comma separated.
	Subdomains []string `envconfig:"TEST_SUBDOMAINS"`
	// AllowForbidden accepts HTTP 403 from anti-bot protection as a passing status in probes.
	AllowForbidden bool `envconfig:"ALLOW_FORBIDDEN" default:"false"`
}

// LoadSettings loads settings from the environment.
// If envFile exists it is loaded first; variables already set in the environment take precedence.
func LoadSettings(envFile string) (*Settings, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	var settings Settings
	if err := envconfig.Process("", &settings); err != nil {
		return nil, err
	}
	if err := validate(&settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

func validate(settings *Settings) error {
	settings.AuthMode = strings.ToLower(strings.TrimSpace(settings.AuthMode))
	if settings.AuthMode != AuthModeAPI && settings.AuthMode != AuthModeBrowser {
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeAPI, AuthModeBrowser, settings.AuthMode)
	}
	if settings.CookieDir == "" {
		return fmt.Errorf("COOKIE_DIR is required")
	}
	if settings.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}

	return nil
}

// Sites returns the base URL followed by all configured subdomains.
func (s *Settings) Sites() []string {
	sites := []string{s.BaseURL}
	for _, sub := range s.Subdomains {
		if sub = strings.TrimSpace(sub); sub != "" && sub != s.BaseURL {
			sites = append(sites, sub)
		}
	}
	return sites
}
