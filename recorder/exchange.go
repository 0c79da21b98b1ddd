package recorder

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/samber/lo"
)

// Options configures a Recorder.
type Options struct {
	// Capacity is the number of exchanges to keep.
	// Default: 100
	Capacity uint64
	// MaxBodySize is the maximum number of response body bytes kept per exchange.
	// Default: 64KB
	MaxBodySize int
	// CaptureResponseBody enables capturing response bodies.
	CaptureResponseBody bool
}

// DefaultOptions returns default options for a Recorder.
func DefaultOptions() Options {
	return Options{
		Capacity:            100,
		MaxBodySize:         64 * 1024,
		CaptureResponseBody: true,
	}
}

// Exchange is a recorded HTTP request and its response.
// Secrets are never recorded: form values, query passwords and cookie values are left out.
type Exchange struct {
	ID           uuid.UUID
	Method       string
	URL          string
	RequestTime  time.Time
	ResponseTime time.Time
	StatusCode   int
	Location     string
	ContentType  string
	// SetCookies holds the names of cookies set by the response.
	SetCookies []string
	Body       *Snippet
	Error      error
}

// Duration returns how long the exchange took.
func (e *Exchange) Duration() time.Duration {
	return e.ResponseTime.Sub(e.RequestTime)
}

// Recorder records outgoing HTTP exchanges for diagnostics of login and probe requests.
type Recorder struct {
	exchanges *Ring[*Exchange]
	options   Options
}

// New creates a recorder with default options.
func New() *Recorder {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a recorder with the given options. Zero values use the defaults.
func NewWithOptions(options Options) *Recorder {
	defaults := DefaultOptions()
	if options.Capacity == 0 {
		options.Capacity = defaults.Capacity
	}
	if options.MaxBodySize == 0 {
		options.MaxBodySize = defaults.MaxBodySize
	}

	return &Recorder{
		exchanges: NewRing[*Exchange](options.Capacity),
		options:   options,
	}
}

// Exchanges returns up to n of the most recent exchanges, oldest first.
func (r *Recorder) Exchanges(n uint64) []*Exchange {
	return r.exchanges.Last(n)
}

// Transport wraps next so that every round trip is recorded.
func (r *Recorder) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &recordingTransport{next: next, recorder: r}
}

type recordingTransport struct {
	next     http.RoundTripper
	recorder *Recorder
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	exchange := &Exchange{
		ID:          uuid.Must(uuid.NewV7()),
		Method:      req.Method,
		URL:         redactURL(req.URL),
		RequestTime: time.Now(),
	}

	resp, err := t.next.RoundTrip(req)

	exchange.ResponseTime = time.Now()
	exchange.Error = err

	if resp != nil {
		exchange.StatusCode = resp.StatusCode
		exchange.Location = resp.Header.Get("Location")
		exchange.ContentType = resp.Header.Get("Content-Type")
		exchange.SetCookies = lo.Map(resp.Cookies(), func(c *http.Cookie, _ int) string {
			return c.Name
		})

		if resp.Body != nil && t.recorder.options.CaptureResponseBody {
			snippet := NewSnippet(t.recorder.options.MaxBodySize)
			exchange.Body = snippet
			resp.Body = &teeBody{ReadCloser: resp.Body, w: snippet}
		}
	}

	t.recorder.exchanges.Add(exchange)

	return resp, err
}

// teeBody copies everything read by the client into a snippet.
type teeBody struct {
	io.ReadCloser
	w io.Writer
}

func (b *teeBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		_, _ = b.w.Write(p[:n])
	}
	return n, err
}

var secretParams = []string{"password", "pass", "passwd", "token", "session"}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	redacted := *u
	redacted.User = nil

	query := redacted.Query()
	changed := false
	for key := range query {
		if lo.ContainsBy(secretParams, func(p string) bool { return strings.EqualFold(p, key) }) {
			query.Set(key, "REDACTED")
			changed = true
		}
	}
	if changed {
		redacted.RawQuery = query.Encode()
	}
	return redacted.String()
}
