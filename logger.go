package csrow

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with csrow-specific helpers. All diagnostics the
// loaders emit (read progress, throughput) go through one of these.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. If handler is nil, a
// text handler to stderr at Info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithURI tags the logger with the dataset URI being read.
func (l *Logger) WithURI(uri string) *Logger {
	return &Logger{Logger: l.Logger.With("uri", uri)}
}

// WithPart tags the logger with the input-split coordinates.
func (l *Logger) WithPart(partIndex, numParts uint32) *Logger {
	return &Logger{Logger: l.Logger.With("part", partIndex, "num_parts", numParts)}
}
