//go:build acceptance
// +build acceptance

package acceptance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/browser"
	"github.com/networkteam/sessionkit/probe"
)

// SitePage provides helper methods for interacting with a page of the site under test.
// It wraps the page objects of the browser package with test assertions.
type SitePage struct {
	Page    playwright.Page
	SiteURL string
	Home    *browser.HomePage
	Menu    *browser.BurgerMenu
	t       *testing.T
}

// NewSitePage opens siteURL in a new page of ctx.
func NewSitePage(t *testing.T, ctx playwright.BrowserContext, siteURL string) *SitePage {
	t.Helper()

	page, err := ctx.NewPage()
	require.NoError(t, err)

	sp := &SitePage{
		Page:    page,
		SiteURL: strings.TrimSuffix(siteURL, "/"),
		Home:    browser.NewHomePage(page, ""),
		Menu:    browser.NewBurgerMenu(page, browser.MenuSelectors{}, nil),
		t:       t,
	}
	sp.Menu.Timeout = 2000
	sp.Goto("/")
	return sp
}

// Goto navigates to path on the site and returns the document status.
func (sp *SitePage) Goto(path string) int {
	sp.t.Helper()

	status, err := sp.Home.Open(sp.SiteURL+path, 15000)
	require.NoError(sp.t, err, "failed to open %s", path)
	return status
}

// ExpectAuthenticated waits for the authenticated marker.
func (sp *SitePage) ExpectAuthenticated() {
	sp.t.Helper()
	require.True(sp.t, sp.Home.IsAuthenticated(5000), "expected authenticated page at %s", sp.Page.URL())
}

// ExpectAnonymous verifies that the authenticated marker stays absent.
func (sp *SitePage) ExpectAnonymous() {
	sp.t.Helper()
	require.False(sp.t, sp.Home.IsAuthenticated(1000), "expected anonymous page at %s", sp.Page.URL())
}

// ClickMenuItem opens the burger menu, clicks the item and waits for the navigation.
// It returns the click strategy that worked.
func (sp *SitePage) ClickMenuItem(text, wantPath string) string {
	sp.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	strategy, err := sp.Menu.Click(ctx, text)
	require.NoError(sp.t, err, "failed to click menu item %q", text)

	err = sp.Page.WaitForURL("**"+wantPath, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	})
	require.NoError(sp.t, err, "menu item %q did not navigate to %s", text, wantPath)
	return strategy
}

// Inspect returns the forms of the current page.
func (sp *SitePage) Inspect() probe.Page {
	sp.t.Helper()

	content, err := sp.Page.Content()
	require.NoError(sp.t, err)
	page, err := probe.InspectHTML(strings.NewReader(content), sp.Page.URL())
	require.NoError(sp.t, err)
	return page
}
