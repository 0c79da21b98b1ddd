package recorder

import (
	"bytes"
	"sync"
)

// Snippet captures the first bytes written to it up to a limit and
// silently discards the rest. It is safe for concurrent use.
type Snippet struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
	mu        sync.Mutex
}

// NewSnippet creates a snippet holding at most limit bytes.
func NewSnippet(limit int) *Snippet {
	return &Snippet{limit: limit}
}

// Write implements io.Writer. It always reports len(p) bytes written.
func (s *Snippet) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.truncated {
		return len(p), nil
	}

	remaining := s.limit - s.buf.Len()
	if len(p) > remaining {
		s.buf.Write(p[:max(remaining, 0)])
		s.truncated = true
		return len(p), nil
	}

	s.buf.Write(p)
	return len(p), nil
}

// Truncated reports whether data beyond the limit was discarded.
func (s *Snippet) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

// Len returns the number of captured bytes.
func (s *Snippet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// String returns the captured content.
func (s *Snippet) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
