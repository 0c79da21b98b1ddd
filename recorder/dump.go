package recorder

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DumpOptions controls how exchanges are written by Dump.
type DumpOptions struct {
	// Highlight colours bodies for a terminal.
	Highlight bool
	// MaxBodyLines limits the body lines printed per exchange (0 prints no body).
	MaxBodyLines int
}

// Dump writes a human readable trace of exchanges to w.
func Dump(w io.Writer, exchanges []*Exchange, opts DumpOptions) error {
	for _, e := range exchanges {
		status := fmt.Sprintf("%d", e.StatusCode)
		if e.Error != nil {
			status = "ERR " + e.Error.Error()
		}
		if _, err := fmt.Fprintf(w, "%s %s -> %s (%s)\n", e.Method, e.URL, status, e.Duration().Round(time.Millisecond)); err != nil {
			return err
		}
		if e.Location != "" {
			fmt.Fprintf(w, "  Location: %s\n", e.Location)
		}
		if len(e.SetCookies) > 0 {
			fmt.Fprintf(w, "  Set-Cookie: %s\n", strings.Join(e.SetCookies, ", "))
		}

		if e.Body == nil || opts.MaxBodyLines <= 0 || e.Body.Len() == 0 {
			continue
		}
		body := headLines(e.Body.String(), opts.MaxBodyLines)
		if opts.Highlight {
			if err := highlight(w, body, e.ContentType); err != nil {
				return err
			}
			fmt.Fprintln(w)
		} else {
			fmt.Fprintln(w, body)
		}
	}
	return nil
}

func headLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}

func highlight(w io.Writer, content, contentType string) error {
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])

	lexer := lexers.MatchMimeType(contentType)
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return err
	}
	return formatter.Format(w, style, iterator)
}
