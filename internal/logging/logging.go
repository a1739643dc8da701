// Package logging builds the process logger: human-readable text on the
// console, plus JSON lines to a file when one is configured.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps debug|info|warn|error to a level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New fans records out to a text handler on console and, when file is not
// nil, a JSON handler on file.
func New(level slog.Leveler, console, file io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}
	if file != nil {
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Open builds the logger for the process. The returned closer releases the
// log file; it is a no-op when no file is configured.
func Open(level, path string) (*slog.Logger, io.Closer, error) {
	lv := ParseLevel(level)
	if path == "" {
		return New(lv, os.Stderr, nil), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(lv, os.Stderr, f), f, nil
}
