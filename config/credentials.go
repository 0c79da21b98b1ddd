package config

import (
	"errors"
	"os"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// PlaceholderPrefix marks template credentials that were never filled in.
const PlaceholderPrefix = "REPLACE_WITH_REAL"

// ErrUnusableCredential is returned when no usable credential exists for a role.
var ErrUnusableCredential = errors.New("no usable credential")

// Credential is a username/password pair for a role.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	// Placeholder explicitly marks a credential as not filled in.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Usable reports whether the credential can be used for a login.
func (c Credential) Usable() bool {
	if c.Placeholder {
		return false
	}
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return false
	}
	return !isPlaceholder(c.Username) && !isPlaceholder(c.Password)
}

// Key returns the name used for per-user cache files.
func (c Credential) Key() string {
	return SanitizeKey(c.Username)
}

func isPlaceholder(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), PlaceholderPrefix)
}

// LookupEnv looks up an environment variable, like os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// OSEnv reads the process environment.
var OSEnv LookupEnv = os.LookupEnv

// Get returns the trimmed value of key, or an empty string.
func (l LookupEnv) Get(key string) string {
	if l == nil {
		l = OSEnv
	}
	v, _ := l(key)
	return strings.TrimSpace(v)
}

// RoleEnvKey builds a role specific variable name, e.g. RoleEnvKey("SESSION_COOKIE", "admin") is SESSION_COOKIE_ADMIN.
func RoleEnvKey(prefix, role string) string {
	return prefix + "_" + strings.ToUpper(SanitizeKey(role))
}

// SanitizeKey replaces characters that are unsafe in file and variable names with underscores.
func SanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == '@' {
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
}

// Credentials resolves credentials for roles from the environment, the auth config and CSV files.
type Credentials struct {
	Env  LookupEnv
	Auth *AuthConfig
	CSV  []Credential
}

// ForRole returns the first usable credential for role, trying in order:
// API_USERNAME_{ROLE}/API_PASSWORD_{ROLE}, API_USERNAME/API_PASSWORD,
// the auth config users and finally CSV credentials.
func (c Credentials) ForRole(role string) (Credential, bool) {
	candidates := []Credential{
		{
			Username: c.Env.Get(RoleEnvKey("API_USERNAME", role)),
			Password: c.Env.Get(RoleEnvKey("API_PASSWORD", role)),
		},
		{
			Username: c.Env.Get("API_USERNAME"),
			Password: c.Env.Get("API_PASSWORD"),
		},
	}
	if c.Auth != nil {
		if cred, ok := c.Auth.User(role); ok {
			candidates = append(candidates, cred)
		}
	}
	candidates = append(candidates, lo.Filter(c.CSV, func(cred Credential, _ int) bool {
		return strings.EqualFold(cred.Role, role)
	})...)

	cred, ok := lo.Find(candidates, Credential.Usable)
	if !ok {
		return Credential{}, false
	}
	cred.Role = role
	return cred, true
}
