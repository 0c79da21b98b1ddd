//go:build acceptance
// +build acceptance

package acceptance

import (
	"context"
	"net/url"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit"
	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
)

// TestFixtures bundles the fixtures for tests against the local test site.
type TestFixtures struct {
	Site *TestSite
	PW   *PlaywrightFixture
}

// WithTestFixtures starts the test site and a browser, registers cleanup with t.Cleanup(),
// and calls the test function.
func WithTestFixtures(t *testing.T, fn func(t *testing.T, f *TestFixtures)) {
	t.Helper()

	site := NewTestSite(t)
	t.Cleanup(func() { site.Close() })

	pw := NewPlaywrightFixture(t)
	t.Cleanup(func() { pw.Close() })

	fn(t, &TestFixtures{Site: site, PW: pw})
}

// LiveFixtures bundle the fixtures for tests against the real site.
type LiveFixtures struct {
	Settings *config.Settings
	Kit      *sessionkit.Kit
	PW       *PlaywrightFixture
	Token    cookie.Token
	Ctx      playwright.BrowserContext
}

// WithLiveSession resolves a session cookie for TARGET_USER and creates an authenticated
// browser context for all configured sites. The test is skipped if no cookie or credential
// is configured, so runs without secrets never fail on missing configuration.
func WithLiveSession(t *testing.T, fn func(t *testing.T, f *LiveFixtures)) {
	t.Helper()

	settings, err := config.LoadSettings("../.env")
	if err != nil {
		t.Skipf("settings unavailable: %v", err)
	}
	kit, err := sessionkit.New(settings)
	if err != nil {
		t.Skipf("session kit unavailable: %v", err)
	}
	t.Cleanup(func() { _ = kit.Close() })

	token, ok, err := kit.Resolve(context.Background(), settings.TargetUser)
	if err != nil {
		t.Fatalf("resolving session cookie: %v", err)
	}
	if !ok {
		t.Skipf("no session cookie or credential configured for %s", settings.TargetUser)
	}

	pw := NewPlaywrightFixture(t)
	t.Cleanup(func() { pw.Close() })

	ctx := pw.NewSessionContext(t, token, settings.Sites()...)
	t.Cleanup(func() { ctx.Close() })

	fn(t, &LiveFixtures{Settings: settings, Kit: kit, PW: pw, Token: token, Ctx: ctx})
}

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}
