// Package session decides whether a resolved session cookie can still be used
// and reacquires it through the resolver when it cannot.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/networkteam/sessionkit/cookie"
)

// DefaultMarker matches markup only rendered for logged in users.
const DefaultMarker = "a[href*='logout'], .profile-menu, .user-menu"

// Refresher obtains a new token for a role, e.g. *resolver.Resolver.
type Refresher interface {
	Refresh(ctx context.Context, role string) (cookie.Token, bool, error)
}

// Options configures a Checker.
type Options struct {
	// BaseURL is the page loaded by Probe.
	// Default: https://bll.by
	BaseURL string
	// Marker is a CSS selector for authenticated-only markup.
	// Default: DefaultMarker
	Marker string
	// Transport is used for probe requests.
	// Default: http.DefaultTransport
	Transport http.RoundTripper
	// Timeout for a single probe request.
	// Default: 15s
	Timeout time.Duration
	// ProbeOnEnsure makes Ensure ask the server before reusing a structurally valid token.
	ProbeOnEnsure bool
	UserAgent     string
	Logger        *slog.Logger
}

// DefaultOptions returns default options for a Checker.
func DefaultOptions() Options {
	return Options{
		BaseURL:   "https://bll.by",
		Marker:    DefaultMarker,
		Transport: http.DefaultTransport,
		Timeout:   15 * time.Second,
		Logger:    slog.Default(),
	}
}

// Checker validates session tokens and refreshes them when needed.
type Checker struct {
	refresher Refresher
	options   Options
	client    *http.Client
}

// NewChecker creates a checker. refresher may be nil if Ensure is never used.
// Zero option values use the defaults.
func NewChecker(refresher Refresher, options Options) *Checker {
	defaults := DefaultOptions()
	if options.BaseURL == "" {
		options.BaseURL = defaults.BaseURL
	}
	if options.Marker == "" {
		options.Marker = defaults.Marker
	}
	if options.Transport == nil {
		options.Transport = defaults.Transport
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	return &Checker{
		refresher: refresher,
		options:   options,
		client: &http.Client{
			Transport: options.Transport,
			Timeout:   options.Timeout,
		},
	}
}

// Valid is the offline check: the token exists, belongs to role (if it carries one)
// and its value passes cookie.ValidateCookie.
func (c *Checker) Valid(token *cookie.Token, role string) bool {
	if token == nil {
		return false
	}
	if token.Role != "" && role != "" && !strings.EqualFold(token.Role, role) {
		return false
	}
	return cookie.ValidateCookie(token.Value)
}

// Probe loads the base URL with the token as session cookie and reports whether
// authenticated markup is present. Any failure counts as an invalid session.
func (c *Checker) Probe(ctx context.Context, token cookie.Token) bool {
	logger := c.options.Logger.With(slog.String("component", "session"), slog.String("token", token.Masked()))

	ok, err := c.probe(ctx, token.Value)
	if err != nil {
		logger.Debug("Session probe failed", slog.String("error", err.Error()))
		return false
	}
	if !ok {
		logger.Debug("Session not accepted, no authenticated markup", slog.String("marker", c.options.Marker))
	}
	return ok
}

func (c *Checker) probe(ctx context.Context, value string) (bool, error) {
	if !cookie.ValidateCookie(value) {
		return false, cookie.ErrInvalidCookie
	}
	target, err := url.Parse(c.options.BaseURL)
	if err != nil || target.Host == "" {
		return false, fmt.Errorf("invalid base URL %q", c.options.BaseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return false, err
	}
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: strings.TrimSpace(value)})
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return false, fmt.Errorf("parsing page: %w", err)
	}
	return doc.Find(c.options.Marker).Length() > 0, nil
}

// Ensure returns token if it is still usable, otherwise a fresh token from the refresher.
// With ProbeOnEnsure the server must accept a token before it is reused.
func (c *Checker) Ensure(ctx context.Context, role string, token *cookie.Token) (cookie.Token, error) {
	logger := c.options.Logger.With(slog.String("component", "session"), slog.String("role", role))

	if c.Valid(token, role) {
		if !c.options.ProbeOnEnsure || c.Probe(ctx, *token) {
			return *token, nil
		}
		logger.Info("Session cookie rejected by server, refreshing")
	} else {
		logger.Info("Session cookie missing or malformed, refreshing")
	}

	if c.refresher == nil {
		return cookie.Token{}, fmt.Errorf("refreshing session for %s: no refresher configured", role)
	}
	fresh, ok, err := c.refresher.Refresh(ctx, role)
	if err != nil {
		return cookie.Token{}, fmt.Errorf("refreshing session for %s: %w", role, err)
	}
	if !ok {
		return cookie.Token{}, fmt.Errorf("refreshing session for %s: %w", role, ErrNoSession)
	}
	if !c.Valid(&fresh, role) {
		return cookie.Token{}, fmt.Errorf("refreshing session for %s: %w", role, cookie.ErrInvalidCookie)
	}
	return fresh, nil
}
