package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
)

// UILoginOptions configures a UILogin.
type UILoginOptions struct {
	Selectors LoginSelectors
	// Marker is the authenticated-only selector awaited after submitting.
	// Default: DefaultAuthenticatedMarker
	Marker string
	// Timeout for the whole login.
	// Default: 30s
	Timeout time.Duration
	Logger  *slog.Logger
}

// UILogin logs in through the login form in a fresh browser context and reads
// the session cookie from the context.
type UILogin struct {
	launcher     *Launcher
	ownsLauncher bool
	options      UILoginOptions
}

var _ login.Authenticator = (*UILogin)(nil)

// NewUILogin creates a UI login sharing launcher. Each login uses its own context.
func NewUILogin(launcher *Launcher, options UILoginOptions) *UILogin {
	if options.Marker == "" {
		options.Marker = DefaultAuthenticatedMarker
	}
	if options.Timeout == 0 {
		options.Timeout = 30 * time.Second
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &UILogin{launcher: launcher, options: options}
}

// LaunchUILogin starts a dedicated browser for the UI login. Close releases it.
func LaunchUILogin(launcherOptions LauncherOptions, options UILoginOptions) (*UILogin, error) {
	launcher, err := NewLauncher(launcherOptions)
	if err != nil {
		return nil, err
	}
	l := NewUILogin(launcher, options)
	l.ownsLauncher = true
	return l, nil
}

// Close closes the browser if it was launched by LaunchUILogin.
func (l *UILogin) Close() error {
	if !l.ownsLauncher {
		return nil
	}
	return l.launcher.Close()
}

func (l *UILogin) Login(ctx context.Context, req login.Request) login.Result {
	var attempt login.Attempt
	logger := l.options.Logger.With(slog.String("component", "ui-login"), slog.String("user", req.Credential.Username))

	if !req.Credential.Usable() {
		return attempt.Fail("credential for %q is not usable", req.Credential.Role)
	}
	if err := ctx.Err(); err != nil {
		return attempt.Fail("login canceled: %v", err)
	}
	timeout := timeoutMillis(ctx, l.options.Timeout)

	bctx, err := l.launcher.NewContext()
	if err != nil {
		return attempt.Fail("%v", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return attempt.Fail("opening page: %v", err)
	}

	loginPage := NewLoginPage(page, l.options.Selectors)
	if err := loginPage.Open(req.LoginURL, timeout); err != nil {
		return attempt.Fail("%v", err)
	}

	attempt.Submit()
	logger.Debug("Submitting login form", slog.String("url", req.LoginURL))
	if err := loginPage.Submit(req.Credential); err != nil {
		return attempt.Fail("%v", err)
	}

	if !NewHomePage(page, l.options.Marker).IsAuthenticated(timeoutMillis(ctx, l.options.Timeout)) {
		if msg := loginPage.ErrorMessage(); msg != "" {
			return attempt.Fail("login rejected: %s", msg)
		}
		return attempt.Fail("authenticated marker %q not found after login", l.options.Marker)
	}

	cookies, err := bctx.Cookies()
	if err != nil {
		return attempt.Fail("reading cookies: %v", err)
	}
	records := Records(cookies)
	session, ok := cookie.FindSession(records)
	if !ok {
		return attempt.Fail("logged in but no %s cookie was set", cookie.Name)
	}

	logger.Info("Logged in", slog.String("token", cookie.Mask(session.Value)))
	return attempt.Succeed(session.Value, records)
}
