// Package resolver finds a session cookie for a role by trying an ordered list of sources.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
)

// ErrNoLoginSource is returned by Refresh if no source can log in.
var ErrNoLoginSource = errors.New("no login source configured")

// Source supplies a session token for a role.
//
// A source that simply has nothing to offer returns ok=false and a nil error.
// Errors are reserved for unexpected failures and stop the resolution.
type Source interface {
	Name() string
	Kind() cookie.Source
	Resolve(ctx context.Context, role string) (token cookie.Token, ok bool, err error)
}

// Resolver tries sources in order and returns the first token found.
type Resolver struct {
	sources []Source
	logger  *slog.Logger
}

// New creates a resolver trying sources in the given order.
func New(logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		sources: sources,
		logger:  logger.With(slog.String("component", "resolver")),
	}
}

// Options configures the default source chain built by NewDefault.
type Options struct {
	Env         config.LookupEnv
	Store       *cookie.Store
	Credentials config.Credentials
	// LoginURL is where the login source logs in. If empty, no login is attempted.
	LoginURL      string
	Authenticator login.Authenticator
	Logger        *slog.Logger
}

// NewDefault creates a resolver with the standard chain:
// environment, text cache file, JSON cache file and network login.
func NewDefault(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := []Source{&EnvSource{Env: opts.Env}}
	if opts.Store != nil {
		sources = append(sources,
			&TextFileSource{Store: opts.Store, Logger: logger},
			&JSONFileSource{Store: opts.Store, Logger: logger},
		)
	}
	if opts.Authenticator != nil {
		sources = append(sources, &LoginSource{
			Credentials:   opts.Credentials,
			LoginURL:      opts.LoginURL,
			Authenticator: opts.Authenticator,
			Logger:        logger,
		})
	}

	return New(logger, sources...)
}

// Sources returns the names of the configured sources in order.
func (r *Resolver) Sources() []string {
	return lo.Map(r.sources, func(s Source, _ int) string { return s.Name() })
}

// Resolve returns the first token any source supplies for role.
// An empty role means cookie.DefaultRole. ok is false if no source had a token.
func (r *Resolver) Resolve(ctx context.Context, role string) (cookie.Token, bool, error) {
	return r.resolve(ctx, normalizeRole(role), r.sources)
}

// Refresh obtains a new token only from sources that log in, skipping cached values.
func (r *Resolver) Refresh(ctx context.Context, role string) (cookie.Token, bool, error) {
	sources := lo.Filter(r.sources, func(s Source, _ int) bool {
		return s.Kind() == cookie.SourceNetworkLogin
	})
	if len(sources) == 0 {
		return cookie.Token{}, false, ErrNoLoginSource
	}
	return r.resolve(ctx, normalizeRole(role), sources)
}

func (r *Resolver) resolve(ctx context.Context, role string, sources []Source) (cookie.Token, bool, error) {
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return cookie.Token{}, false, err
		}

		token, ok, err := source.Resolve(ctx, role)
		if err != nil {
			return cookie.Token{}, false, err
		}
		if ok {
			r.logger.Debug("Resolved session cookie", slog.String("role", role), slog.String("source", source.Name()), slog.String("token", token.Masked()))
			return token, true, nil
		}
	}

	r.logger.Info("No session cookie available", slog.String("role", role))
	return cookie.Token{}, false, nil
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return cookie.DefaultRole
	}
	return role
}
