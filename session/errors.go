package session

import "errors"

// ErrNoSession is returned by Ensure when no valid session could be obtained.
var ErrNoSession = errors.New("no session available")
