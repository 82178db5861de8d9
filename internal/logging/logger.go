// Package logging wraps slog with the field names used across rgbify.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/paulmach/orb/maptile"
	"golang.org/x/time/rate"
)

// Logger wraps slog.Logger with rgbify-specific helpers.
type Logger struct {
	*slog.Logger
	progress *rate.Sometimes
}

// New creates a Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger:   slog.New(handler),
		progress: &rate.Sometimes{First: 1, Interval: 2 * time.Second},
	}
}

// NewText creates a Logger that outputs human-readable text logs to w.
func NewText(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a Logger that outputs JSON-formatted logs to w.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop creates a Logger that discards all log output.
func Noop() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithWorker tags records with a worker index.
func (l *Logger) WithWorker(id int) *Logger {
	return &Logger{Logger: l.Logger.With("worker", id), progress: l.progress}
}

// LogTile logs the outcome of one tile.
func (l *Logger) LogTile(ctx context.Context, t maptile.Tile, size int, err error) {
	if err != nil {
		l.WarnContext(ctx, "tile failed",
			"z", t.Z,
			"x", t.X,
			"y", t.Y,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "tile written",
		"z", t.Z,
		"x", t.X,
		"y", t.Y,
		"bytes", size,
	)
}

// LogProgress logs a progress line at most every couple of seconds.
func (l *Logger) LogProgress(ctx context.Context, done, total int) {
	l.progress.Do(func() {
		pct := 0.0
		if total > 0 {
			pct = float64(done) / float64(total) * 100
		}
		l.InfoContext(ctx, "progress",
			"done", done,
			"total", total,
			"percent", int(pct),
		)
	})
}

// LogRun logs the end of a run.
func (l *Logger) LogRun(ctx context.Context, path string, written, skipped int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "run failed",
			"output", path,
			"written", written,
			"skipped", skipped,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "run completed",
		"output", path,
		"written", written,
		"skipped", skipped,
		"elapsed", elapsed.Round(time.Millisecond),
	)
}
