package login

import (
	"context"
	"log/slog"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
)

// KeyFunc names the cache files for a login request.
type KeyFunc func(req Request) string

// KeyByRole uses the role of the credential and falls back to the username.
func KeyByRole(req Request) string {
	if req.Credential.Role != "" {
		return config.SanitizeKey(req.Credential.Role)
	}
	return req.Credential.Key()
}

// KeyByUsername uses the username, for bulk logins of many accounts.
func KeyByUsername(req Request) string {
	return req.Credential.Key()
}

// Caching writes the token of every successful login to a cookie store, so later runs
// can reuse it without logging in again.
type Caching struct {
	Next   Authenticator
	Store  *cookie.Store
	Key    KeyFunc
	Logger *slog.Logger
}

func (c *Caching) Login(ctx context.Context, req Request) Result {
	result := c.Next.Login(ctx, req)
	if !result.Success {
		return result
	}

	keyFn := c.Key
	if keyFn == nil {
		keyFn = KeyByRole
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := keyFn(req)

	if err := c.Store.SaveToken(key, result.SessionToken); err != nil {
		// A malformed token must neither be cached nor used
		return Result{
			Message: "session cookie rejected: " + err.Error(),
			State:   StateFailed,
		}
	}
	if len(result.Cookies) > 0 {
		if err := c.Store.SaveRecords(key, result.Cookies); err != nil {
			logger.Warn("Could not cache cookie records", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	logger.Debug("Cached session cookie", slog.String("key", key), slog.String("path", c.Store.TextPath(key)))
	return result
}
