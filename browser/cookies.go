package browser

import (
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"

	"github.com/networkteam/sessionkit/cookie"
)

// SessionCookies returns the session cookie for the host of every site.
// The cookie is marked secure for https sites only so plain http test servers receive it.
func SessionCookies(value string, sites []string) []playwright.OptionalCookie {
	type target struct {
		host   string
		secure bool
	}
	targets := lo.UniqBy(lo.FilterMap(sites, func(site string, _ int) (target, bool) {
		u, err := url.Parse(strings.TrimSpace(site))
		if err != nil || u.Hostname() == "" {
			return target{}, false
		}
		return target{host: u.Hostname(), secure: u.Scheme == "https"}, true
	}), func(t target) string {
		return t.host
	})

	return lo.Map(targets, func(t target, _ int) playwright.OptionalCookie {
		return playwright.OptionalCookie{
			Name:     cookie.Name,
			Value:    strings.TrimSpace(value),
			Domain:   playwright.String(t.host),
			Path:     playwright.String("/"),
			HttpOnly: playwright.Bool(true),
			Secure:   playwright.Bool(t.secure),
			SameSite: playwright.SameSiteAttributeLax,
		}
	})
}

// OptionalCookies converts cached records for loading into a browser context.
// Records without a domain are skipped since the browser cannot place them.
func OptionalCookies(records []cookie.Record) []playwright.OptionalCookie {
	return lo.FilterMap(records, func(r cookie.Record, _ int) (playwright.OptionalCookie, bool) {
		if r.Name == "" || r.Domain == "" {
			return playwright.OptionalCookie{}, false
		}
		path := r.Path
		if path == "" {
			path = "/"
		}
		c := playwright.OptionalCookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   playwright.String(r.Domain),
			Path:     playwright.String(path),
			HttpOnly: playwright.Bool(r.HTTPOnly),
			Secure:   playwright.Bool(r.Secure),
			SameSite: sameSite(r.SameSite),
		}
		if r.Expires > 0 {
			c.Expires = playwright.Float(r.Expires)
		}
		return c, true
	})
}

// Records converts cookies of a browser context into cache records.
func Records(cookies []playwright.Cookie) []cookie.Record {
	return lo.Map(cookies, func(c playwright.Cookie, _ int) cookie.Record {
		r := cookie.Record{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			r.Expires = c.Expires
		}
		if c.SameSite != nil {
			r.SameSite = string(*c.SameSite)
		}
		return r
	})
}

func sameSite(v string) *playwright.SameSiteAttribute {
	switch strings.ToLower(v) {
	case "strict":
		return playwright.SameSiteAttributeStrict
	case "none", "no_restriction":
		return playwright.SameSiteAttributeNone
	case "lax":
		return playwright.SameSiteAttributeLax
	default:
		return nil
	}
}
