package cookie

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Record is a cookie as exported by browser automation "storage state" dumps.
type Record struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// UnmarshalJSON accepts both "expires" and "expiry" and tolerates non-string values,
// which are treated as empty.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := struct {
		*alias
		Name   any      `json:"name"`
		Value  any      `json:"value"`
		Expiry *float64 `json:"expiry"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Name, _ = aux.Name.(string)
	r.Value, _ = aux.Value.(string)
	if r.Expires == 0 && aux.Expiry != nil {
		r.Expires = *aux.Expiry
	}
	return nil
}

// ExpiresAt returns the expiry time, or the zero time for session cookies.
func (r Record) ExpiresAt() time.Time {
	if r.Expires <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(r.Expires), 0)
}

// Expired reports whether the cookie has a fixed expiry in the past.
func (r Record) Expired(now time.Time) bool {
	exp := r.ExpiresAt()
	return !exp.IsZero() && exp.Before(now)
}

// HTTPCookie converts the record for use with a net/http cookie jar.
func (r Record) HTTPCookie() *http.Cookie {
	c := &http.Cookie{
		Name:     r.Name,
		Value:    r.Value,
		Domain:   strings.TrimPrefix(r.Domain, "."),
		Path:     r.Path,
		Expires:  r.ExpiresAt(),
		HttpOnly: r.HTTPOnly,
		Secure:   r.Secure,
	}
	switch strings.ToLower(r.SameSite) {
	case "strict":
		c.SameSite = http.SameSiteStrictMode
	case "lax":
		c.SameSite = http.SameSiteLaxMode
	case "none":
		c.SameSite = http.SameSiteNoneMode
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

// RecordFromHTTP converts a net/http cookie into a record.
func RecordFromHTTP(c *http.Cookie) Record {
	r := Record{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	if !c.Expires.IsZero() {
		r.Expires = float64(c.Expires.Unix())
	}
	switch c.SameSite {
	case http.SameSiteStrictMode:
		r.SameSite = "Strict"
	case http.SameSiteLaxMode:
		r.SameSite = "Lax"
	case http.SameSiteNoneMode:
		r.SameSite = "None"
	}
	return r
}

// ParseRecords decodes a JSON array of cookie records.
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding cookie records: %w", err)
	}
	return records, nil
}

// FindSession returns the first record carrying the session cookie.
// An empty value of that record means no session, later duplicates are not considered.
func FindSession(records []Record) (Record, bool) {
	session, ok := lo.Find(records, func(r Record) bool {
		return r.Name == Name
	})
	if !ok || strings.TrimSpace(session.Value) == "" {
		return Record{}, false
	}
	return session, true
}
