package cookie

import (
	"fmt"
	"time"
)

// Name is the session cookie that authenticates a browser session.
// Any other cookie set by the site is ignored for authentication.
const Name = "test_joint_session"

// DefaultRole is used when no role is given.
const DefaultRole = "admin"

// Source tells where a token was obtained from.
type Source int

const (
	SourceUnknown Source = iota
	SourceEnvironment
	SourceFileCache
	SourceNetworkLogin
)

func (s Source) String() string {
	switch s {
	case SourceEnvironment:
		return "environment"
	case SourceFileCache:
		return "file-cache"
	case SourceNetworkLogin:
		return "network-login"
	default:
		return "unknown"
	}
}

// Token is a resolved session cookie value for a role.
type Token struct {
	Value      string
	Role       string
	AcquiredAt time.Time
	Source     Source
}

// NewToken creates a token acquired now.
func NewToken(value, role string, source Source) Token {
	return Token{
		Value:      value,
		Role:       role,
		AcquiredAt: time.Now(),
		Source:     source,
	}
}

// Masked returns the value with everything but the first and last 3 characters hidden,
// suitable for logs and CLI output.
func (t Token) Masked() string {
	return Mask(t.Value)
}

func (t Token) String() string {
	return fmt.Sprintf("%s token for %q from %s", t.Masked(), t.Role, t.Source)
}

// Mask hides the middle of a secret value.
func Mask(value string) string {
	if len(value) <= 6 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}
