// Package login obtains fresh session cookies by logging in.
//
// Every failure (network errors, timeouts, unexpected status codes, a missing
// session cookie) is reported through Result and never returned as an error,
// so callers can treat a login attempt as a single outcome. There is no retry;
// callers decide whether to try again.
package login

import (
	"context"
	"fmt"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
)

// State is the progress of a single login attempt.
type State int

const (
	StateNotStarted State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request describes a login attempt.
type Request struct {
	Credential config.Credential
	// LoginURL is the endpoint or page to log in at.
	LoginURL string
}

// Result is the outcome of a login attempt.
type Result struct {
	Success      bool
	SessionToken string
	Message      string
	State        State
	// Cookies are all cookies known after the login, for caching in storage state form.
	Cookies []cookie.Record
}

// Authenticator performs a login.
type Authenticator interface {
	Login(ctx context.Context, req Request) Result
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req Request) Result

func (f AuthenticatorFunc) Login(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Attempt tracks the state machine of one login attempt:
// NotStarted -> Submitting -> Succeeded | Failed.
type Attempt struct {
	state State
}

// State returns the current state.
func (a *Attempt) State() State {
	return a.state
}

// Submit moves the attempt into the submitting state.
func (a *Attempt) Submit() {
	if a.state == StateNotStarted {
		a.state = StateSubmitting
	}
}

// Fail finishes the attempt unsuccessfully.
func (a *Attempt) Fail(format string, args ...any) Result {
	a.state = StateFailed
	return Result{
		Message: fmt.Sprintf(format, args...),
		State:   a.state,
	}
}

// Succeed finishes the attempt with a session token.
func (a *Attempt) Succeed(token string, cookies []cookie.Record) Result {
	a.state = StateSucceeded
	return Result{
		Success:      true,
		SessionToken: token,
		Message:      "logged in",
		State:        a.state,
		Cookies:      cookies,
	}
}
