package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/networkteam/sessionkit/bulk"
	"github.com/networkteam/sessionkit/recorder"
)

func raw(s string) templ.Component {
	return templ.Raw(s)
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

func join(components ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range components {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func baseStyles() templ.Component {
	return raw(`<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; font-size: .9rem; }
.badge { border-radius: 999px; padding: .1rem .6rem; font-family: monospace; font-size: .8rem; color: #fff; }
.badge-succeeded { background: #16a34a; }
.badge-skipped { background: #737373; }
.badge-failed { background: #ef4444; }
.badge-not-started { background: #fb923c; }
.exchange { margin-bottom: 1.5rem; }
.exchange pre { max-height: 30rem; overflow: auto; }
</style>`)
}

func badge(status bulk.Status) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<span class="badge badge-%s">%s</span>`, templ.EscapeString(string(status)), templ.EscapeString(string(status)))
		return err
	})
}

func summary(r Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s := r.Summary
		_, err := fmt.Fprintf(w,
			`<p>Run <code>%s</code> generated %s: %d succeeded, %d skipped, %d failed, %d not started in %s.</p>`,
			templ.EscapeString(s.RunID.String()),
			templ.EscapeString(r.GeneratedAt.Format(time.RFC3339)),
			s.Count(bulk.StatusSucceeded),
			s.Count(bulk.StatusSkipped),
			s.Count(bulk.StatusFailed),
			s.Count(bulk.StatusNotStarted),
			templ.EscapeString(s.Duration().Round(time.Millisecond).String()),
		)
		return err
	})
}

func outcomes(list []bulk.Outcome) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h2>Users</h2><table><thead><tr><th>User</th><th>Role</th><th>Status</th><th>Duration</th><th>Cookie</th><th>Message</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, o := range list {
			if err := join(
				raw("<tr><td>"), text(o.Username),
				raw("</td><td>"), text(o.Role),
				raw("</td><td>"), badge(o.Status),
				raw("</td><td>"), text(o.Duration().Round(time.Millisecond).String()),
				raw("</td><td><code>"), text(o.Token),
				raw("</code></td><td>"), text(o.Message),
				raw("</td></tr>"),
			).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	})
}

func logs(records []slog.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(records) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, `<h2>Log</h2><table><tbody>`); err != nil {
			return err
		}
		for _, record := range records {
			var attrs []string
			record.Attrs(func(attr slog.Attr) bool {
				attrs = append(attrs, attr.String())
				return true
			})
			if err := join(
				raw("<tr><td>"), text(record.Time.Format("15:04:05.000")),
				raw("</td><td>"), text(record.Level.String()),
				raw("</td><td>"), text(record.Message),
				raw("</td><td><code>"), text(strings.Join(attrs, " ")),
				raw("</code></td></tr>"),
			).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	})
}

func exchanges(list []*recorder.Exchange) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(list) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, "<h2>HTTP exchanges</h2>"); err != nil {
			return err
		}
		for _, e := range list {
			status := fmt.Sprintf("%d", e.StatusCode)
			if e.Error != nil {
				status = e.Error.Error()
			}
			parts := []templ.Component{
				raw(`<div class="exchange"><h3>`),
				text(fmt.Sprintf("%s %s", e.Method, e.URL)),
				raw("</h3><p>"),
				text(fmt.Sprintf("%s in %s", status, e.Duration().Round(time.Millisecond))),
			}
			if e.Location != "" {
				parts = append(parts, raw("<br>Location: "), text(e.Location))
			}
			if len(e.SetCookies) > 0 {
				parts = append(parts, raw("<br>Set-Cookie: "), text(strings.Join(e.SetCookies, ", ")))
			}
			parts = append(parts, raw("</p>"))
			if e.Body != nil && e.Body.Len() > 0 {
				parts = append(parts, highlightContent(e.Body.String(), e.ContentType))
			}
			parts = append(parts, raw("</div>"))

			if err := join(parts...).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// highlightContent applies syntax highlighting to the content
func highlightContent(content string, contentType string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])

		lexer := lexers.MatchMimeType(contentType)
		if lexer == nil {
			lexer = lexers.Fallback
		}

		formatter, style := chromaFormatterAndStyle()

		iterator, err := lexer.Tokenise(nil, content)
		if err != nil {
			return err
		}
		return formatter.Format(w, style, iterator)
	})
}

func chromaFormatterAndStyle() (*html.Formatter, *chroma.Style) {
	formatter := html.New(
		html.Standalone(false),
		html.WithClasses(true),
		html.TabWidth(4),
	)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	return formatter, style
}

func chromaStyles() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, "<style>")
		formatter, style := chromaFormatterAndStyle()
		err := formatter.WriteCSS(w, style)

		_, _ = io.WriteString(w, ".chroma { white-space: pre-wrap; }\n")
		_, _ = io.WriteString(w, "</style>")
		return err
	})
}
