// Package probe checks HTTP level behaviour of the site: redirect chains,
// accepted status codes and anti-bot protection of forms.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrTooManyRedirects is returned when a chain does not end within MaxHops.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusPolicy decides which final status codes count as a reachable page.
type StatusPolicy struct {
	// AllowForbidden accepts 403, which anti-bot protection answers on test environments.
	AllowForbidden bool
}

// Accept reports whether status is acceptable.
func (p StatusPolicy) Accept(status int) bool {
	if status >= 200 && status <= 299 {
		return true
	}
	return p.AllowForbidden && status == http.StatusForbidden
}

// Hop is one response in a redirect chain.
type Hop struct {
	URL        string
	StatusCode int
	Location   string
}

// Chain is the sequence of responses for a request, the last one being final.
type Chain []Hop

// Final returns the last hop.
func (c Chain) Final() Hop {
	if len(c) == 0 {
		return Hop{}
	}
	return c[len(c)-1]
}

// Redirected reports whether at least one redirect happened.
func (c Chain) Redirected() bool {
	return len(c) > 1
}

func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, hop := range c {
		parts = append(parts, fmt.Sprintf("%d %s", hop.StatusCode, hop.URL))
	}
	return strings.Join(parts, " -> ")
}

// Options configures a Client.
type Options struct {
	// Transport is used for requests.
	// Default: http.DefaultTransport
	Transport http.RoundTripper
	// Timeout for a single request.
	// Default: 10s
	Timeout time.Duration
	// MaxHops limits the number of redirects followed.
	// Default: 10
	MaxHops   int
	Policy    StatusPolicy
	UserAgent string
	// Cookies are sent to the host of the requested URL, e.g. the session cookie.
	// Cookies without a domain are host-only and never follow a redirect to another host.
	Cookies []*http.Cookie
	Logger  *slog.Logger
}

// DefaultOptions returns default options for a Client.
func DefaultOptions() Options {
	return Options{
		Transport: http.DefaultTransport,
		Timeout:   10 * time.Second,
		MaxHops:   10,
		Logger:    slog.Default(),
	}
}

// Client follows redirects manually so every hop can be inspected.
type Client struct {
	options Options
	client  *http.Client
}

// NewClient creates a client. Zero option values use the defaults.
func NewClient(options Options) *Client {
	defaults := DefaultOptions()
	if options.Transport == nil {
		options.Transport = defaults.Transport
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.MaxHops == 0 {
		options.MaxHops = defaults.MaxHops
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	return &Client{
		options: options,
		client: &http.Client{
			Transport: options.Transport,
			Timeout:   options.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Policy returns the status policy of the client.
func (c *Client) Policy() StatusPolicy {
	return c.options.Policy
}

// Follow requests rawURL and follows Location headers until a non-redirect response.
func (c *Client) Follow(ctx context.Context, rawURL string) (Chain, error) {
	current, err := url.Parse(rawURL)
	if err != nil || current.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	client, err := c.session(current)
	if err != nil {
		return nil, err
	}

	var chain Chain
	for i := 0; i <= c.options.MaxHops; i++ {
		resp, err := c.get(ctx, client, current.String())
		if err != nil {
			return chain, err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		hop := Hop{URL: current.String(), StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
		chain = append(chain, hop)
		c.options.Logger.Debug("Probe hop", slog.Int("status", hop.StatusCode), slog.String("url", hop.URL), slog.String("location", hop.Location))

		if !isRedirect(resp.StatusCode) || hop.Location == "" {
			return chain, nil
		}
		next, err := current.Parse(hop.Location)
		if err != nil {
			return chain, fmt.Errorf("invalid Location %q: %w", hop.Location, err)
		}
		current = next
	}
	return chain, fmt.Errorf("%s: %w", rawURL, ErrTooManyRedirects)
}

// ExpectRedirect follows from and checks that the chain redirects and ends at to
// with a status accepted by the policy. to may be relative to from.
func (c *Client) ExpectRedirect(ctx context.Context, from, to string) (Chain, error) {
	chain, err := c.Follow(ctx, from)
	if err != nil {
		return chain, err
	}
	if !chain.Redirected() {
		return chain, fmt.Errorf("%s was not redirected (HTTP %d)", from, chain.Final().StatusCode)
	}

	base, _ := url.Parse(from)
	want, err := base.Parse(to)
	if err != nil {
		return chain, fmt.Errorf("invalid target %q: %w", to, err)
	}
	final := chain.Final()
	got, _ := url.Parse(final.URL)
	if !sameLocation(got, want) {
		return chain, fmt.Errorf("%s redirected to %s, expected %s", from, final.URL, want)
	}
	if !c.options.Policy.Accept(final.StatusCode) {
		return chain, fmt.Errorf("%s ended with HTTP %d", final.URL, final.StatusCode)
	}
	return chain, nil
}

// Status requests rawURL without following redirects and reports whether its status is accepted.
func (c *Client) Status(ctx context.Context, rawURL string) (int, bool, error) {
	resp, err := c.request(ctx, rawURL)
	if err != nil {
		return 0, false, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	return resp.StatusCode, c.options.Policy.Accept(resp.StatusCode), nil
}

// session returns an HTTP client whose cookie jar holds the configured cookies for start.
// The jar decides per hop which cookies are sent and keeps cookies set along the chain.
func (c *Client) session(start *url.URL) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	cookies := lo.Map(c.options.Cookies, func(ck *http.Cookie, _ int) *http.Cookie {
		scoped := *ck
		if scoped.Path == "" {
			scoped.Path = "/"
		}
		return &scoped
	})
	jar.SetCookies(start, cookies)

	client := *c.client
	client.Jar = jar
	return &client, nil
}

// request sends a single GET to rawURL with the cookies scoped to it.
func (c *Client) request(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}
	client, err := c.session(u)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, client, rawURL)
}

func (c *Client) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func sameLocation(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host) &&
		strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/") &&
		(b.Scheme == "" || a.Scheme == b.Scheme)
}
