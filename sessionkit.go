package sessionkit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/networkteam/sessionkit/browser"
	"github.com/networkteam/sessionkit/bulk"
	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
	"github.com/networkteam/sessionkit/probe"
	"github.com/networkteam/sessionkit/recorder"
	"github.com/networkteam/sessionkit/resolver"
	"github.com/networkteam/sessionkit/session"
)

// Kit wires the session components for one process: configuration is loaded once
// and shared by the resolver, the validity checker and the login clients.
type Kit struct {
	settings    *config.Settings
	authConfig  *config.AuthConfig
	credentials config.Credentials
	store       *cookie.Store
	recorder    *recorder.Recorder
	logs        *recorder.LogHandler
	logger      *slog.Logger

	httpOptions   login.HTTPOptions
	authenticator login.Authenticator
	resolver      *resolver.Resolver
	checker       *session.Checker

	mu       sync.Mutex
	launcher *browser.Launcher
}

// Options configures a Kit.
type Options struct {
	// Settings are required, see config.LoadSettings.
	Settings *config.Settings
	// Env is used for per-role variables.
	// Default: config.OSEnv
	Env config.LookupEnv
	// RecorderOptions are the options for recording HTTP exchanges.
	// Default: nil, will use recorder.DefaultOptions()
	RecorderOptions *recorder.Options
	// HTTPOptions are the options for API logins. The transport is wrapped by the recorder.
	// Default: nil, will use login.DefaultHTTPOptions()
	HTTPOptions *login.HTTPOptions
	// Logs keeps recent log records, e.g. the handler also passed to Logger.
	// Default: nil, no records are kept
	Logs *recorder.LogHandler
	// ProbeOnEnsure makes Ensure ask the site whether a cached cookie is still accepted.
	ProbeOnEnsure bool
	Logger        *slog.Logger
}

// New creates a kit for settings with default options.
func New(settings *config.Settings) (*Kit, error) {
	return NewWithOptions(Options{Settings: settings})
}

// NewWithOptions creates a kit. The auth config and CSV credentials named by the settings
// are read here, once. A missing auth config only disables the credentials it would provide.
func NewWithOptions(options Options) (*Kit, error) {
	if options.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	settings := options.Settings
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := options.Env
	if env == nil {
		env = config.OSEnv
	}

	authConfig := config.LoadAuthConfigOrEmpty(settings.AuthConfigPath, logger)
	var csvCreds []config.Credential
	if settings.CredentialsCSV != "" {
		creds, err := config.LoadCSVCredentials(settings.CredentialsCSV)
		if err != nil {
			return nil, err
		}
		csvCreds = creds
	}

	recorderOptions := recorder.DefaultOptions()
	if options.RecorderOptions != nil {
		recorderOptions = *options.RecorderOptions
	}
	rec := recorder.NewWithOptions(recorderOptions)

	httpOptions := login.DefaultHTTPOptions()
	if options.HTTPOptions != nil {
		httpOptions = *options.HTTPOptions
	}
	httpOptions.Transport = rec.Transport(httpOptions.Transport)
	httpOptions.Logger = logger

	k := &Kit{
		settings:    settings,
		authConfig:  authConfig,
		credentials: config.Credentials{Env: env, Auth: authConfig, CSV: csvCreds},
		store:       cookie.NewStore(settings.CookieDir),
		recorder:    rec,
		logs:        options.Logs,
		logger:      logger,
		httpOptions: httpOptions,
	}

	k.authenticator = &login.Caching{
		Next:   k.newAuthenticator(),
		Store:  k.store,
		Key:    login.KeyByRole,
		Logger: logger,
	}
	k.resolver = resolver.NewDefault(resolver.Options{
		Env:           env,
		Store:         k.store,
		Credentials:   k.credentials,
		LoginURL:      authConfig.LoginURL,
		Authenticator: k.authenticator,
		Logger:        logger,
	})
	k.checker = session.NewChecker(k.resolver, session.Options{
		BaseURL:       settings.BaseURL,
		Transport:     rec.Transport(http.DefaultTransport),
		ProbeOnEnsure: options.ProbeOnEnsure,
		Logger:        logger,
	})

	return k, nil
}

// newAuthenticator returns the authenticator for the configured mode. Browser mode shares
// one lazily launched browser, each login in its own context.
func (k *Kit) newAuthenticator() login.Authenticator {
	if k.settings.AuthMode != config.AuthModeBrowser {
		return login.NewHTTPClient(k.httpOptions)
	}
	return login.AuthenticatorFunc(func(ctx context.Context, req login.Request) login.Result {
		launcher, err := k.Launcher()
		if err != nil {
			return login.Result{Message: err.Error(), State: login.StateFailed}
		}
		return browser.NewUILogin(launcher, browser.UILoginOptions{Logger: k.logger}).Login(ctx, req)
	})
}

// Settings returns the settings of the kit.
func (k *Kit) Settings() *config.Settings {
	return k.settings
}

// Store returns the cookie cache.
func (k *Kit) Store() *cookie.Store {
	return k.store
}

// Resolver returns the cookie source resolver.
func (k *Kit) Resolver() *resolver.Resolver {
	return k.resolver
}

// Checker returns the session validity checker.
func (k *Kit) Checker() *session.Checker {
	return k.checker
}

// Resolve returns a session token for role, see resolver.Resolver.Resolve.
func (k *Kit) Resolve(ctx context.Context, role string) (cookie.Token, bool, error) {
	return k.resolver.Resolve(ctx, role)
}

// Ensure resolves a token for role and refreshes it if it is not valid.
func (k *Kit) Ensure(ctx context.Context, role string) (cookie.Token, error) {
	token, ok, err := k.resolver.Resolve(ctx, role)
	if err != nil {
		return cookie.Token{}, err
	}
	if !ok {
		return k.checker.Ensure(ctx, role, nil)
	}
	return k.checker.Ensure(ctx, role, &token)
}

// Login logs in role with its configured credential and caches the new cookie.
func (k *Kit) Login(ctx context.Context, role string) (login.Result, error) {
	cred, ok := k.credentials.ForRole(role)
	if !ok {
		return login.Result{}, fmt.Errorf("%s: %w", role, config.ErrUnusableCredential)
	}
	return k.authenticator.Login(ctx, login.Request{Credential: cred, LoginURL: k.authConfig.LoginURL}), nil
}

// LoginURL returns the login endpoint of the auth config.
func (k *Kit) LoginURL() string {
	return k.authConfig.LoginURL
}

// Credentials returns the credential sources of the kit.
func (k *Kit) Credentials() config.Credentials {
	return k.credentials
}

// BulkJobs returns a job for every CSV credential, or for every auth config user
// if no CSV file is configured.
func (k *Kit) BulkJobs() []bulk.Job {
	creds := k.credentials.CSV
	if len(creds) == 0 {
		creds = lo.MapToSlice(k.authConfig.Users, func(role string, c config.Credential) config.Credential {
			c.Role = role
			return c
		})
		slices.SortFunc(creds, func(a, b config.Credential) int { return strings.Compare(a.Role, b.Role) })
	}
	return bulk.Jobs(creds, k.LoginURL())
}

// BulkRunner creates a runner caching cookies per username in the kit's store.
// In browser mode every worker launches its own browser.
func (k *Kit) BulkRunner(options bulk.Options) *bulk.Runner {
	options.Store = k.store
	if options.Logger == nil {
		options.Logger = k.logger
	}

	factory := func() (login.Authenticator, error) {
		return login.NewHTTPClient(k.httpOptions), nil
	}
	if k.settings.AuthMode == config.AuthModeBrowser {
		factory = func() (login.Authenticator, error) {
			return browser.LaunchUILogin(
				browser.LauncherOptions{Headless: k.settings.Headless, Logger: k.logger},
				browser.UILoginOptions{Logger: k.logger},
			)
		}
	}
	return bulk.NewRunner(factory, options)
}

// ProbeClient creates a client for redirect and form checks honouring ALLOW_FORBIDDEN.
func (k *Kit) ProbeClient(cookies ...*http.Cookie) *probe.Client {
	return probe.NewClient(probe.Options{
		Transport: k.recorder.Transport(http.DefaultTransport),
		Policy:    probe.StatusPolicy{AllowForbidden: k.settings.AllowForbidden},
		Cookies:   cookies,
		Logger:    k.logger,
	})
}

// Launcher returns the shared browser, launching it on first use.
func (k *Kit) Launcher() (*browser.Launcher, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.launcher != nil {
		return k.launcher, nil
	}
	launcher, err := browser.NewLauncher(browser.LauncherOptions{Headless: k.settings.Headless, Logger: k.logger})
	if err != nil {
		return nil, err
	}
	k.launcher = launcher
	return launcher, nil
}

// Exchanges returns up to n recent HTTP exchanges.
func (k *Kit) Exchanges(n uint64) []*recorder.Exchange {
	return k.recorder.Exchanges(n)
}

// Logs returns up to n recent log records, if a log handler was configured.
func (k *Kit) Logs(n uint64) []slog.Record {
	if k.logs == nil {
		return nil
	}
	return k.logs.Records(n)
}

// Close releases the shared browser.
func (k *Kit) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.launcher == nil {
		return nil
	}
	err := k.launcher.Close()
	k.launcher = nil
	return err
}
