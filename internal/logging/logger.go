// Package logging provides the leveled console logger used across the CLI.
//
// Console lines are timestamped and level-tagged (colored through the term
// package); ERROR lines go to stderr. When a log file is configured, every
// emitted line is also written there as a JSON record via log/slog, carrying
// persistent attributes such as the batch ID.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/term"
)

// sink is shared by a logger and all of its children.
type sink struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	file   *os.File
	json   *slog.Logger
}

// Logger provides leveled, optionally colored logging with an optional JSON
// file sink. It is safe for concurrent use.
type Logger struct {
	s     *sink
	min   slog.Level
	attrs []any
}

// NewLogger configures colors from cfg and optionally opens the log file.
// Call Close when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout, os.Stderr)
}

func newLogger(cfg *config.Config, stdout, stderr io.Writer) (*Logger, error) {
	term.Configure(cfg.Logging.Color)

	l := &Logger{
		s:   &sink{stdout: stdout, stderr: stderr},
		min: parseLevel(cfg.Logging.Level),
	}
	if cfg.Logging.Verbose {
		l.min = slog.LevelDebug
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.s.file = f
		l.s.json = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: l.min}))
	}
	return l, nil
}

// NopLogger returns a logger that discards everything. Intended for tests.
func NopLogger() *Logger {
	return &Logger{
		s:   &sink{stdout: io.Discard, stderr: io.Discard},
		min: slog.LevelError + 1,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case config.LevelDebug:
		return slog.LevelDebug
	case config.LevelWarn:
		return slog.LevelWarn
	case config.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBatch returns a child logger whose file records carry batch_id.
func (l *Logger) WithBatch(id string) *Logger {
	return l.With("batch_id", id)
}

// With returns a child logger with extra key-value attributes for the file sink.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{s: l.s, min: l.min, attrs: attrs}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.file != nil {
		err := l.s.file.Close()
		l.s.file = nil
		l.s.json = nil
		return err
	}
	return nil
}

func (l *Logger) line(level slog.Level, tag string, style lipgloss.Style, text string) {
	if level < l.min {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")

	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	out := l.s.stdout
	if level >= slog.LevelError {
		out = l.s.stderr
	}
	_, _ = io.WriteString(out, ts+" "+term.Paint(style, "["+tag+"]")+" "+text+"\n")

	if l.s.json != nil {
		args := l.attrs
		if tag == "SUCCESS" {
			args = append(append([]any{}, l.attrs...), "outcome", "success")
		}
		l.s.json.Log(context.Background(), level, text, args...)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...any) {
	l.line(slog.LevelInfo, "INFO", term.Blue, fmt.Sprintf(format, args...))
}

// Success logs at INFO level with a green SUCCESS tag.
func (l *Logger) Success(format string, args ...any) {
	l.line(slog.LevelInfo, "SUCCESS", term.Green, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...any) {
	l.line(slog.LevelWarn, "WARN", term.Yellow, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red) to stderr.
func (l *Logger) Error(format string, args ...any) {
	l.line(slog.LevelError, "ERROR", term.Red, fmt.Sprintf(format, args...))
}

// Outlier logs at WARN level with an orange OUTLIER tag.
func (l *Logger) Outlier(format string, args ...any) {
	l.line(slog.LevelWarn, "OUTLIER", term.Orange, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan); shown with --verbose or --log-level debug.
func (l *Logger) Debug(format string, args ...any) {
	l.line(slog.LevelDebug, "DEBUG", term.Cyan, fmt.Sprintf(format, args...))
}
