// Package logging is the structured logger shared by the esedb packages and
// the esedbinfo command. Events are written under stable message names
// (file_opened, header_mismatch, scan_result, ...) so JSON output can be
// filtered on "msg".
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Format selects the handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type scanIDKey struct{}

var current atomic.Pointer[slog.Logger]

func init() {
	Configure(os.Stderr, slog.LevelInfo, FormatJSON)
}

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a level name to a slog level. Names are case-insensitive
// and an empty name means info.
func ParseLevel(s string) (slog.Level, error) {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat maps a format name to a Format. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText:
		return f, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// InitLogger installs a logger writing to standard error, keeping standard
// output free for command results.
func InitLogger(level slog.Level, format Format) {
	Configure(os.Stderr, level, format)
}

// Configure installs a logger writing to w and makes it the slog default.
func Configure(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: rfc3339}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if format == FormatText {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
	return l
}

// rfc3339 drops sub-second precision from record timestamps.
func rfc3339(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// Logger returns the installed logger.
func Logger() *slog.Logger {
	return current.Load()
}

// WithScanID returns a context carrying a scan run id.
func WithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey{}, id)
}

// ScanID returns the scan run id carried by ctx, or "".
func ScanID(ctx context.Context) string {
	id, _ := ctx.Value(scanIDKey{}).(string)
	return id
}

// FromContext returns the installed logger, tagged with the scan id in ctx
// if there is one.
func FromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if id := ScanID(ctx); id != "" {
		l = l.With("scan_id", id)
	}
	return l
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).WarnContext(ctx, msg, args...)
}

// emit writes one named event. extra holds caller-supplied key/value pairs.
func emit(ctx context.Context, level slog.Level, event string, extra []any, attrs ...slog.Attr) {
	l := FromContext(ctx)
	if !l.Enabled(ctx, level) {
		return
	}
	if len(extra) > 0 {
		l = l.With(extra...)
	}
	l.LogAttrs(ctx, level, event, attrs...)
}

// FileOpened records a successful open of a file or stream.
func FileOpened(source, fileType string, pageSize uint32, args ...any) {
	emit(context.Background(), slog.LevelDebug, "file_opened", args,
		slog.String("source", source),
		slog.String("file_type", fileType),
		slog.Uint64("page_size", uint64(pageSize)))
}

// FileClosed records the release of a file or stream.
func FileClosed(source string, args ...any) {
	emit(context.Background(), slog.LevelDebug, "file_closed", args,
		slog.String("source", source))
}

// TeardownError records a release failure that has no caller to return to.
func TeardownError(source, operation string, err error, args ...any) {
	emit(context.Background(), slog.LevelWarn, "teardown_error", args,
		slog.String("source", source),
		slog.String("operation", operation),
		slog.Any("error", err))
}

// HeaderMismatch records a field on which the primary and backup file
// headers disagree.
func HeaderMismatch(field string, primary, backup uint32, args ...any) {
	emit(context.Background(), slog.LevelWarn, "header_mismatch", args,
		slog.String("field", field),
		slog.Uint64("primary", uint64(primary)),
		slog.Uint64("backup", uint64(backup)))
}

// PageCacheStats records page cache usage when a session ends.
func PageCacheStats(pages uint32, hits, misses, evictions int64, args ...any) {
	emit(context.Background(), slog.LevelDebug, "page_cache_stats", args,
		slog.Uint64("pages", uint64(pages)),
		slog.Int64("hits", hits),
		slog.Int64("misses", misses),
		slog.Int64("evictions", evictions))
}

// ScanResult records the totals of a finished directory scan.
func ScanResult(ctx context.Context, root string, scanned, matched int, elapsed time.Duration, args ...any) {
	emit(ctx, slog.LevelInfo, "scan_result", args,
		slog.String("root", root),
		slog.Int("scanned", scanned),
		slog.Int("matched", matched),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
}
