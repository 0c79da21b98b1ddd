package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/sessionkit/config"
)

// DefaultAuthenticatedMarker matches markup only rendered for logged in users.
const DefaultAuthenticatedMarker = "a[href*='logout'], .profile-menu, .user-menu"

// LoginSelectors locate the elements of the login form.
type LoginSelectors struct {
	Username string
	Password string
	Submit   string
	// Error is the message shown for rejected credentials.
	Error string
}

// DefaultLoginSelectors returns the selectors of the bll.by login form.
func DefaultLoginSelectors() LoginSelectors {
	return LoginSelectors{
		Username: "input[name='username'], input[name='login'], input[type='email']",
		Password: "input[name='password'], input[type='password']",
		Submit:   "button[type='submit'], input[type='submit']",
		Error:    ".error, .alert-danger, .form-error",
	}
}

// LoginPage is the page object of the login form.
type LoginPage struct {
	Page      playwright.Page
	Selectors LoginSelectors
}

// NewLoginPage wraps page. Empty selectors use the defaults.
func NewLoginPage(page playwright.Page, selectors LoginSelectors) *LoginPage {
	defaults := DefaultLoginSelectors()
	if selectors.Username == "" {
		selectors.Username = defaults.Username
	}
	if selectors.Password == "" {
		selectors.Password = defaults.Password
	}
	if selectors.Submit == "" {
		selectors.Submit = defaults.Submit
	}
	if selectors.Error == "" {
		selectors.Error = defaults.Error
	}
	return &LoginPage{Page: page, Selectors: selectors}
}

// Open navigates to the login page and waits for the username field.
func (p *LoginPage) Open(loginURL string, timeout float64) error {
	if _, err := p.Page.Goto(loginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeout),
	}); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}
	return p.Page.Locator(p.Selectors.Username).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeout),
	})
}

// Submit fills in the credential and submits the form.
func (p *LoginPage) Submit(cred config.Credential) error {
	if err := p.Page.Locator(p.Selectors.Username).First().Fill(cred.Username); err != nil {
		return fmt.Errorf("filling username: %w", err)
	}
	if err := p.Page.Locator(p.Selectors.Password).First().Fill(cred.Password); err != nil {
		return fmt.Errorf("filling password: %w", err)
	}
	if err := p.Page.Locator(p.Selectors.Submit).First().Click(); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	return nil
}

// ErrorMessage returns the visible error message of the form, if any.
func (p *LoginPage) ErrorMessage() string {
	loc := p.Page.Locator(p.Selectors.Error).First()
	if visible, err := loc.IsVisible(); err != nil || !visible {
		return ""
	}
	text, err := loc.TextContent()
	if err != nil {
		return ""
	}
	return text
}

// HomePage is any page of the site, checked for the authenticated marker.
type HomePage struct {
	Page   playwright.Page
	Marker string
}

// NewHomePage wraps page. An empty marker uses DefaultAuthenticatedMarker.
func NewHomePage(page playwright.Page, marker string) *HomePage {
	if marker == "" {
		marker = DefaultAuthenticatedMarker
	}
	return &HomePage{Page: page, Marker: marker}
}

// Open navigates to siteURL and returns the HTTP status of the document.
func (p *HomePage) Open(siteURL string, timeout float64) (int, error) {
	resp, err := p.Page.Goto(siteURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeout),
	})
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", siteURL, err)
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

// IsAuthenticated waits up to timeout for the authenticated marker.
// A timeout or any other failure counts as not authenticated.
func (p *HomePage) IsAuthenticated(timeout float64) bool {
	err := p.Page.Locator(p.Marker).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(timeout),
	})
	return err == nil
}

// MenuSelectors locate the burger menu.
type MenuSelectors struct {
	Toggle string
	Panel  string
}

// DefaultMenuSelectors returns the burger menu selectors shared by the bll.by sites.
func DefaultMenuSelectors() MenuSelectors {
	return MenuSelectors{
		Toggle: ".burger, .menu-toggle, button[aria-label*='меню'], button[aria-label*='menu']",
		Panel:  ".burger-menu, .mobile-menu, nav[role='navigation']",
	}
}

// BurgerMenu is the page object of the navigation menu. Opening the menu is retried since
// animations and overlays often swallow the first click. Items are clicked with increasingly
// forceful strategies because they are frequently covered by banners.
type BurgerMenu struct {
	Page      playwright.Page
	Selectors MenuSelectors
	// OpenAttempts is how often opening the menu is tried.
	OpenAttempts uint
	// Delay between attempts to open the menu.
	Delay   time.Duration
	Timeout float64
	Logger  *slog.Logger
}

// NewBurgerMenu wraps page. Empty selectors use the defaults.
func NewBurgerMenu(page playwright.Page, selectors MenuSelectors, logger *slog.Logger) *BurgerMenu {
	defaults := DefaultMenuSelectors()
	if selectors.Toggle == "" {
		selectors.Toggle = defaults.Toggle
	}
	if selectors.Panel == "" {
		selectors.Panel = defaults.Panel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BurgerMenu{
		Page:         page,
		Selectors:    selectors,
		OpenAttempts: 3,
		Delay:        500 * time.Millisecond,
		Timeout:      5000,
		Logger:       logger,
	}
}

// Open opens the menu and waits for its panel to become visible.
func (m *BurgerMenu) Open(ctx context.Context) error {
	return retry.New(
		retry.Attempts(m.OpenAttempts),
		retry.Delay(m.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		if m.IsOpen() {
			return nil
		}
		toggle := m.Page.Locator(m.Selectors.Toggle).First()
		if _, err := m.clickAttempts(toggle).Run(m.Logger); err != nil {
			return fmt.Errorf("clicking menu toggle: %w", err)
		}
		return m.Page.Locator(m.Selectors.Panel).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(m.Timeout),
		})
	})
}

// IsOpen reports whether the menu panel is visible.
func (m *BurgerMenu) IsOpen() bool {
	visible, err := m.Page.Locator(m.Selectors.Panel).First().IsVisible()
	return err == nil && visible
}

// Items returns the texts of the links in the open menu.
func (m *BurgerMenu) Items() ([]string, error) {
	return m.Page.Locator(m.Selectors.Panel).First().Locator("a").AllInnerTexts()
}

// Click opens the menu and clicks the item with the given text.
// It returns the name of the strategy that worked.
func (m *BurgerMenu) Click(ctx context.Context, text string) (string, error) {
	if err := m.Open(ctx); err != nil {
		return "", err
	}
	item := m.Page.Locator(m.Selectors.Panel).First().GetByText(text, playwright.LocatorGetByTextOptions{
		Exact: playwright.Bool(true),
	}).First()

	strategy, err := m.clickAttempts(item).Run(m.Logger)
	if err != nil {
		return "", fmt.Errorf("clicking menu item %q: %w", text, err)
	}
	m.Logger.Debug("Clicked menu item", slog.String("item", text), slog.String("strategy", strategy))
	return strategy, nil
}

func (m *BurgerMenu) clickAttempts(loc playwright.Locator) Attempts {
	return ClickAttempts(loc, m.Timeout)
}

// ClickAttempts are the click strategies for an element, from gentle to forceful:
// a normal click, a forced click skipping actionability checks and a click event
// dispatched from JavaScript.
func ClickAttempts(loc playwright.Locator, timeout float64) Attempts {
	return Attempts{
		{Name: "click", Fn: func() error {
			return loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(timeout)})
		}},
		{Name: "force-click", Fn: func() error {
			if err := loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
				Timeout: playwright.Float(timeout),
			}); err != nil && !errors.Is(err, playwright.ErrTimeout) {
				return err
			}
			return loc.Click(playwright.LocatorClickOptions{
				Force:   playwright.Bool(true),
				Timeout: playwright.Float(timeout),
			})
		}},
		{Name: "js-dispatch", Fn: func() error {
			return loc.DispatchEvent("click", nil, playwright.LocatorDispatchEventOptions{
				Timeout: playwright.Float(timeout),
			})
		}},
	}
}
