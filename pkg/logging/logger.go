package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// ParseLevel maps a textual level onto slog, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// NewWithFile logs JSON to stdout and, when path is non-empty, also to the
// given file. If the file cannot be opened the logger falls back to stdout.
func NewWithFile(level, path string) *Logger {
	if path == "" {
		return New(level)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := New(level)
		logger.Error("failed to open log file, using stdout only", "error", err, "file", path)
		return logger
	}
	logger := Fanout(level, os.Stdout, file)
	logger.closer = file
	return logger
}

// Fanout builds a logger that writes every record to each writer as JSON.
func Fanout(level string, writers ...io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	return &Logger{Logger: slog.New(slogmulti.Fanout(handlers...))}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
