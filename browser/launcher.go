// Package browser drives the site with playwright: authenticated browser contexts,
// page objects for login and navigation, and browser based login and session checks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/sessionkit/cookie"
)

// LauncherOptions configures a Launcher.
type LauncherOptions struct {
	Headless bool
	// SlowMo slows down every browser operation, for watching headed runs.
	SlowMo time.Duration
	// Timeout is the default timeout of page operations.
	// Default: 30s
	Timeout   time.Duration
	UserAgent string
	// Locale of new contexts.
	// Default: ru-RU
	Locale string
	Logger *slog.Logger
}

// DefaultLauncherOptions returns default options for a Launcher.
func DefaultLauncherOptions() LauncherOptions {
	return LauncherOptions{
		Headless: true,
		Timeout:  30 * time.Second,
		Locale:   "ru-RU",
		Logger:   slog.Default(),
	}
}

// Launcher owns a playwright driver and a Chromium browser.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	options LauncherOptions
}

// NewLauncher starts playwright and launches Chromium. Zero option values use the defaults,
// except Headless which is taken as given.
func NewLauncher(options LauncherOptions) (*Launcher, error) {
	defaults := DefaultLauncherOptions()
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Locale == "" {
		options.Locale = defaults.Locale
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(options.Headless),
	}
	if options.SlowMo > 0 {
		launchOptions.SlowMo = playwright.Float(float64(options.SlowMo.Milliseconds()))
	}
	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	options.Logger.Debug("Browser launched", slog.Bool("headless", options.Headless), slog.String("version", browser.Version()))
	return &Launcher{pw: pw, browser: browser, options: options}, nil
}

// Browser returns the launched browser.
func (l *Launcher) Browser() playwright.Browser {
	return l.browser
}

// Options returns the options of the launcher.
func (l *Launcher) Options() LauncherOptions {
	return l.options
}

// NewContext creates an isolated browser context with its own cookies and storage.
func (l *Launcher) NewContext() (playwright.BrowserContext, error) {
	contextOptions := playwright.BrowserNewContextOptions{
		Locale: playwright.String(l.options.Locale),
	}
	if l.options.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(l.options.UserAgent)
	}
	bctx, err := l.browser.NewContext(contextOptions)
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(l.options.Timeout.Milliseconds()))
	return bctx, nil
}

// NewSessionContext creates a browser context carrying the session cookie of token for every site.
func (l *Launcher) NewSessionContext(token cookie.Token, sites []string) (playwright.BrowserContext, error) {
	if !cookie.ValidateCookie(token.Value) {
		return nil, cookie.ErrInvalidCookie
	}
	cookies := SessionCookies(token.Value, sites)
	if len(cookies) == 0 {
		return nil, errors.New("no site to set the session cookie for")
	}

	bctx, err := l.NewContext()
	if err != nil {
		return nil, err
	}
	if err := bctx.AddCookies(cookies); err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("adding session cookie: %w", err)
	}
	return bctx, nil
}

// Close closes the browser and stops playwright.
func (l *Launcher) Close() error {
	return errors.Join(l.browser.Close(), l.pw.Stop())
}

// timeoutMillis limits timeout to the deadline of ctx, in milliseconds as playwright expects.
func timeoutMillis(ctx context.Context, timeout time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return float64(timeout.Milliseconds())
}
