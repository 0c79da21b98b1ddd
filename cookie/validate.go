package cookie

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the minimum number of characters of a plausible session cookie value.
const MinLength = 8

// ErrInvalidCookie is returned when a cookie value is empty or malformed.
var ErrInvalidCookie = errors.New("invalid cookie value")

// ValidateCookie performs a structural check of a cookie value. It does not
// tell whether the server still accepts the session.
//
// A value is valid if it is non-empty after trimming, at least MinLength
// characters long and has no whitespace inside.
func ValidateCookie(value string) bool {
	trimmed := strings.TrimSpace(value)
	if utf8.RuneCountInString(trimmed) < MinLength {
		return false
	}
	return !strings.ContainsFunc(trimmed, unicode.IsSpace)
}
