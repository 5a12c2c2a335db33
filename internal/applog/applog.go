// Package applog constructs the process-wide *slog.Logger: a colorized
// tint handler, millisecond RFC3339 timestamps, empty-string attributes
// dropped.
package applog

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls the logger tint builds. Zero value is a sane default:
// Info level, writing to stdout.
type Options struct {
	Verbose bool
	Writer  *os.File
}

// New builds a *slog.Logger using tint.NewHandler: level switches to Debug
// under Verbose, timestamps are
// formatted to millisecond precision in UTC, and attrs with an empty
// string value are dropped entirely rather than printed as `key=""`.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
