//go:build acceptance
// +build acceptance

package acceptance

import (
	"os"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/browser"
	"github.com/networkteam/sessionkit/cookie"
)

// PlaywrightFixture manages a browser for tests.
type PlaywrightFixture struct {
	Launcher *browser.Launcher
}

// NewPlaywrightFixture launches Chromium.
// Set TEST_HEADLESS=false to watch the browser while debugging.
func NewPlaywrightFixture(t *testing.T) *PlaywrightFixture {
	t.Helper()

	launcher, err := browser.NewLauncher(browser.LauncherOptions{
		Headless: os.Getenv("TEST_HEADLESS") != "false",
	})
	require.NoError(t, err, "failed to launch browser")

	return &PlaywrightFixture{Launcher: launcher}
}

// NewContext creates a browser context without cookies.
func (pf *PlaywrightFixture) NewContext(t *testing.T) playwright.BrowserContext {
	t.Helper()
	ctx, err := pf.Launcher.NewContext()
	require.NoError(t, err, "failed to create browser context")
	return ctx
}

// NewSessionContext creates a browser context carrying the session cookie for all sites.
func (pf *PlaywrightFixture) NewSessionContext(t *testing.T, token cookie.Token, sites ...string) playwright.BrowserContext {
	t.Helper()
	ctx, err := pf.Launcher.NewSessionContext(token, sites)
	require.NoError(t, err, "failed to create session context")
	return ctx
}

// Close releases all Playwright resources.
func (pf *PlaywrightFixture) Close() {
	_ = pf.Launcher.Close()
}
