package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	charm "github.com/charmbracelet/log"
)

// Output formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// New builds a logger writing to stderr. FormatConsole produces
// human-readable, prefixed lines; anything else produces JSON.
func New(format, name string) *SlogLogger {
	return NewSlogLogger(slog.New(NewHandler(os.Stderr, format, name)))
}

// NewHandler returns the slog.Handler used by New for the given format.
func NewHandler(w io.Writer, format, name string) slog.Handler {
	if format == FormatConsole {
		return charm.NewWithOptions(w, charm.Options{
			ReportTimestamp: true,
			Prefix:          name,
			Level:           charm.DebugLevel,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}).
		WithAttrs([]slog.Attr{slog.String("app", name)})
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
