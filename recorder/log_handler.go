package recorder

import (
	"context"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// LogHandler is a slog.Handler keeping the most recent log records in memory,
// so failures can be summarised with the log lines that led to them.
//
// Use it with slogmulti.Fanout to keep logging to another handler as well.
type LogHandler struct {
	records *Ring[slog.Record]
	level   slog.Leveler

	attrs  []slog.Attr
	groups []string
}

// NewLogHandler creates a handler keeping capacity records at or above level.
func NewLogHandler(capacity uint64, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{
		records: NewRing[slog.Record](capacity),
		level:   level,
	}
}

// Records returns up to n of the most recent records, oldest first.
func (h *LogHandler) Records(n uint64) []slog.Record {
	return h.records.Last(n)
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	// Handler attributes must come before the record attributes, so build a new record.
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	newRecord.AddAttrs(h.attrs...)

	var attrs []slog.Attr
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})
	for i := len(h.groups) - 1; i >= 0; i-- {
		if len(attrs) == 0 {
			break
		}
		attrs = []slog.Attr{slog.Group(h.groups[i], lo.ToAnySlice(attrs)...)}
	}
	newRecord.AddAttrs(attrs...)

	h.records.Add(newRecord)
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		records: h.records,
		level:   h.level,
		attrs:   appendAttrsToGroup(h.groups, h.attrs, attrs...),
		groups:  h.groups,
	}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LogHandler{
		records: h.records,
		level:   h.level,
		attrs:   h.attrs,
		groups:  append(slices.Clone(h.groups), name),
	}
}

func appendAttrsToGroup(groups []string, actualAttrs []slog.Attr, newAttrs ...slog.Attr) []slog.Attr {
	actualAttrs = slices.Clone(actualAttrs)

	if len(groups) == 0 {
		return append(actualAttrs, newAttrs...)
	}

	for i, attr := range actualAttrs {
		if attr.Key == groups[0] && attr.Value.Kind() == slog.KindGroup {
			actualAttrs[i] = slog.Group(groups[0], lo.ToAnySlice(appendAttrsToGroup(groups[1:], attr.Value.Group(), newAttrs...))...)
			return actualAttrs
		}
	}

	return append(actualAttrs, slog.Group(groups[0], lo.ToAnySlice(appendAttrsToGroup(groups[1:], nil, newAttrs...))...))
}
