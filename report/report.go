// Package report renders an HTML report of a bulk login run.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/a-h/templ"
	"github.com/natefinch/atomic"

	"github.com/networkteam/sessionkit/bulk"
	"github.com/networkteam/sessionkit/recorder"
)

// Report is the content of a report page.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Summary     bulk.Summary
	// Exchanges are recent HTTP exchanges, shown with highlighted bodies.
	Exchanges []*recorder.Exchange
	// Logs are recent warnings and errors.
	Logs []slog.Record
}

// Render writes the report as a standalone HTML document.
func Render(ctx context.Context, r Report, w io.Writer) error {
	return Page(r).Render(ctx, w)
}

// WriteFile renders the report and replaces path with it.
func WriteFile(ctx context.Context, path string, r Report) error {
	var buf bytes.Buffer
	if err := Render(ctx, r, &buf); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// Page is the full report document.
func Page(r Report) templ.Component {
	if r.Title == "" {
		r.Title = "Bulk login report"
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	return join(
		raw("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\"><title>"),
		text(r.Title),
		raw("</title>"),
		baseStyles(),
		chromaStyles(),
		raw("</head><body><h1>"),
		text(r.Title),
		raw("</h1>"),
		summary(r),
		outcomes(r.Summary.Outcomes),
		logs(r.Logs),
		exchanges(r.Exchanges),
		raw("</body></html>\n"),
	)
}
