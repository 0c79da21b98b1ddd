package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/networkteam/sessionkit/cookie"
)

// SessionProbe checks a token by loading it into a browser context and looking for
// the authenticated marker. It is best-effort: every failure means invalid.
type SessionProbe struct {
	Launcher *Launcher
	BaseURL  string
	// Marker defaults to DefaultAuthenticatedMarker.
	Marker string
	// Timeout defaults to 15s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Valid reports whether the site accepts token.
func (p *SessionProbe) Valid(ctx context.Context, token cookie.Token) bool {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	logger = logger.With(slog.String("component", "session-probe"), slog.String("token", token.Masked()))

	if ctx.Err() != nil {
		return false
	}
	bctx, err := p.Launcher.NewSessionContext(token, []string{p.BaseURL})
	if err != nil {
		logger.Debug("Could not create session context", slog.String("error", err.Error()))
		return false
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		logger.Debug("Could not open page", slog.String("error", err.Error()))
		return false
	}

	home := NewHomePage(page, p.Marker)
	if _, err := home.Open(p.BaseURL, timeoutMillis(ctx, timeout)); err != nil {
		logger.Debug("Navigation failed", slog.String("error", err.Error()))
		return false
	}
	ok := home.IsAuthenticated(timeoutMillis(ctx, timeout))
	logger.Debug("Session probed", slog.Bool("authenticated", ok))
	return ok
}
