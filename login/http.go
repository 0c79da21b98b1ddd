package login

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/networkteam/sessionkit/cookie"
)

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	// Transport is used for requests, e.g. a recorder transport.
	// Default: http.DefaultTransport
	Transport http.RoundTripper
	// Timeout for the whole login including redirects.
	// Default: 30s
	Timeout time.Duration
	// UsernameField and PasswordField are the form field names.
	// Default: "username" and "password"
	UsernameField string
	PasswordField string
	// ExtraFields are sent with every login form.
	ExtraFields url.Values
	UserAgent   string
	Logger      *slog.Logger
}

// DefaultHTTPOptions returns default options for an HTTPClient.
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Transport:     http.DefaultTransport,
		Timeout:       30 * time.Second,
		UsernameField: "username",
		PasswordField: "password",
		Logger:        slog.Default(),
	}
}

// HTTPClient logs in by posting the login form and reading the session cookie from the cookie jar.
// Each login uses a fresh cookie jar, so a client can be shared between goroutines.
type HTTPClient struct {
	options HTTPOptions
}

// NewHTTPClient creates a client. Zero option values use the defaults.
func NewHTTPClient(options HTTPOptions) *HTTPClient {
	defaults := DefaultHTTPOptions()
	if options.Transport == nil {
		options.Transport = defaults.Transport
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.UsernameField == "" {
		options.UsernameField = defaults.UsernameField
	}
	if options.PasswordField == "" {
		options.PasswordField = defaults.PasswordField
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	return &HTTPClient{options: options}
}

func (c *HTTPClient) Login(ctx context.Context, req Request) Result {
	var attempt Attempt
	logger := c.options.Logger.With(slog.String("component", "login"), slog.String("user", req.Credential.Username))

	loginURL, err := url.Parse(req.LoginURL)
	if err != nil || loginURL.Host == "" {
		return attempt.Fail("invalid login URL %q", req.LoginURL)
	}
	if !req.Credential.Usable() {
		return attempt.Fail("credential for %q is not usable", req.Credential.Role)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return attempt.Fail("creating cookie jar: %v", err)
	}
	client := &http.Client{
		Jar:       jar,
		Transport: c.options.Transport,
		Timeout:   c.options.Timeout,
	}

	form := url.Values{}
	for key, values := range c.options.ExtraFields {
		form[key] = values
	}
	form.Set(c.options.UsernameField, req.Credential.Username)
	form.Set(c.options.PasswordField, req.Credential.Password)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return attempt.Fail("building login request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.options.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.options.UserAgent)
	}

	attempt.Submit()
	logger.Debug("Submitting login form", slog.String("url", loginURL.String()))

	resp, err := client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return attempt.Fail("login request timed out after %s", c.options.Timeout)
		}
		return attempt.Fail("login request failed: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attempt.Fail("login returned HTTP %d", resp.StatusCode)
	}

	finalURL := loginURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	jarCookies := append(jar.Cookies(finalURL), jar.Cookies(loginURL)...)
	jarCookies = lo.UniqBy(jarCookies, func(c *http.Cookie) string { return c.Name })
	records := lo.Map(jarCookies, func(hc *http.Cookie, _ int) cookie.Record {
		r := cookie.RecordFromHTTP(hc)
		if r.Domain == "" {
			r.Domain = finalURL.Hostname()
		}
		if r.Path == "" {
			r.Path = "/"
		}
		return r
	})

	session, ok := cookie.FindSession(records)
	if !ok {
		for _, hc := range resp.Cookies() {
			if hc.Name == cookie.Name && hc.Value != "" {
				session, ok = cookie.RecordFromHTTP(hc), true
				records = append(records, session)
				break
			}
		}
	}
	if !ok {
		return attempt.Fail("login returned HTTP %d but no %s cookie was set", resp.StatusCode, cookie.Name)
	}

	logger.Info("Logged in", slog.String("token", cookie.Mask(session.Value)))
	return attempt.Succeed(session.Value, records)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
