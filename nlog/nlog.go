// Package nlog is a thin log/slog wrapper providing a process-wide
// structured logger, redaction helpers for sensitive fields, and
// contextual child loggers for per-packet tracing. It is deliberately
// small: log/slog already does the structured-logging work, this package
// only adds the conventions nalixcore's packages share.
package nlog

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps *slog.Logger so call sites can use the short Debug/Info/
// Warn/Error verbs without importing log/slog themselves.
type Logger struct {
	s *slog.Logger
}

// Format selects the slog.Handler backing a Logger.
type Format uint8

const (
	FormatText Format = iota
	FormatJSON
)

// New builds a Logger writing to w at the given level and format.
func New(w io.Writer, level slog.Level, format Format) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{s: slog.New(h)}
}

// Default builds a text Logger at Info level writing to stderr.
func Default() *Logger { return New(os.Stderr, slog.LevelInfo, FormatText) }

// Nop builds a Logger that discards everything, for tests and call sites
// that don't wire one in explicitly.
func Nop() *Logger { return New(io.Discard, slog.LevelError+1, FormatText) }

func (l *Logger) Debug(msg string, args ...any) { l.s.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.s.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.s.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.s.Error(msg, args...) }

// With returns a child Logger with args attached to every subsequent
// record, the mechanism contextual per-packet loggers build on.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

// ForPacket returns a child logger tagged with the fields per-packet
// tracing needs: opcode, magic, priority, and the lane it came from.
func ForPacket(l *Logger, magic uint32, opcode uint16, priority uint8, lane string) *Logger {
	return l.With(
		slog.Uint64("magic", uint64(magic)),
		slog.Uint64("opcode", uint64(opcode)),
		slog.Uint64("priority", uint64(priority)),
		slog.String("lane", lane),
	)
}

// ParseLevel maps the config.yaml log_level strings to slog.Level.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps the config.yaml log_format strings to Format.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}
