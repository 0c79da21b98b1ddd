package resolver

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
)

// EnvSource reads SESSION_COOKIE_{ROLE} and then SESSION_COOKIE.
type EnvSource struct {
	Env config.LookupEnv
}

func (s *EnvSource) Name() string        { return "env" }
func (s *EnvSource) Kind() cookie.Source { return cookie.SourceEnvironment }

func (s *EnvSource) Resolve(_ context.Context, role string) (cookie.Token, bool, error) {
	for _, key := range []string{config.RoleEnvKey("SESSION_COOKIE", role), "SESSION_COOKIE"} {
		if value := s.Env.Get(key); value != "" {
			return cookie.NewToken(value, role, cookie.SourceEnvironment), true, nil
		}
	}
	return cookie.Token{}, false, nil
}

// TextFileSource reads {role}_session.txt from a cookie store.
type TextFileSource struct {
	Store  *cookie.Store
	Logger *slog.Logger
}

func (s *TextFileSource) Name() string        { return "text-file" }
func (s *TextFileSource) Kind() cookie.Source { return cookie.SourceFileCache }

func (s *TextFileSource) Resolve(_ context.Context, role string) (cookie.Token, bool, error) {
	value, err := s.Store.ReadText(role)
	if errors.Is(err, fs.ErrNotExist) {
		logger(s.Logger).Debug("No cached session file", slog.String("path", s.Store.TextPath(role)))
		return cookie.Token{}, false, nil
	}
	if err != nil {
		return cookie.Token{}, false, err
	}
	if value == "" {
		logger(s.Logger).Warn("Cached session file is empty", slog.String("path", s.Store.TextPath(role)))
		return cookie.Token{}, false, nil
	}
	return cookie.NewToken(value, role, cookie.SourceFileCache), true, nil
}

// JSONFileSource reads the session cookie record from {role}_cookies.json.
type JSONFileSource struct {
	Store  *cookie.Store
	Logger *slog.Logger
}

func (s *JSONFileSource) Name() string        { return "json-file" }
func (s *JSONFileSource) Kind() cookie.Source { return cookie.SourceFileCache }

func (s *JSONFileSource) Resolve(_ context.Context, role string) (cookie.Token, bool, error) {
	path := s.Store.JSONPath(role)

	records, err := s.Store.ReadRecords(role)
	if errors.Is(err, fs.ErrNotExist) {
		logger(s.Logger).Debug("No cached cookie file", slog.String("path", path))
		return cookie.Token{}, false, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return cookie.Token{}, false, err
	}
	if err != nil {
		logger(s.Logger).Warn("Ignoring malformed cookie file", slog.String("path", path), slog.String("error", err.Error()))
		return cookie.Token{}, false, nil
	}

	session, ok := cookie.FindSession(records)
	if !ok {
		logger(s.Logger).Debug("Cookie file has no session cookie", slog.String("path", path), slog.String("cookie", cookie.Name))
		return cookie.Token{}, false, nil
	}
	return cookie.NewToken(strings.TrimSpace(session.Value), role, cookie.SourceFileCache), true, nil
}

// LoginSource logs in with the credential configured for the role.
type LoginSource struct {
	Credentials   config.Credentials
	LoginURL      string
	Authenticator login.Authenticator
	Logger        *slog.Logger
}

func (s *LoginSource) Name() string        { return "login" }
func (s *LoginSource) Kind() cookie.Source { return cookie.SourceNetworkLogin }

func (s *LoginSource) Resolve(ctx context.Context, role string) (cookie.Token, bool, error) {
	log := logger(s.Logger).With(slog.String("role", role))

	cred, ok := s.Credentials.ForRole(role)
	if !ok {
		log.Info("No usable credential, skipping login")
		return cookie.Token{}, false, nil
	}
	loginURL := s.LoginURL
	if loginURL == "" && s.Credentials.Auth != nil {
		loginURL = s.Credentials.Auth.LoginURL
	}
	if loginURL == "" {
		log.Warn("No login URL configured, skipping login")
		return cookie.Token{}, false, nil
	}

	result := s.Authenticator.Login(ctx, login.Request{Credential: cred, LoginURL: loginURL})
	if !result.Success {
		log.Warn("Login failed", slog.String("message", result.Message))
		return cookie.Token{}, false, nil
	}
	return cookie.NewToken(result.SessionToken, role, cookie.SourceNetworkLogin), true, nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
