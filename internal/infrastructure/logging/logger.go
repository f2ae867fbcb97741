package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "dbcore"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[redacted]"

// secretKeys are attribute keys whose values are never written.
var secretKeys = map[string]struct{}{
	"pass":     {},
	"password": {},
	"secret":   {},
	"token":    {},
}

// Logger is the structured logger shared by every component.
//
// It satisfies the Logger interfaces declared by the pool, engine, migrate
// and mqtt packages, so a single configured instance is handed to each via
// With("component", ...).
type Logger struct {
	*slog.Logger
}

// New returns a Logger writing to the destination named by cfg.Output
// ("stdout" or "stderr"; anything else means stdout).
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
//
// Durations are written as strings ("1.25s") rather than nanosecond counts,
// and attributes keyed pass, password, secret or token are redacted.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: replaceAttr,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(output, opts)
	} else {
		h = slog.NewJSONHandler(output, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// Discard returns a Logger that writes nothing.
func Discard() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "error"}, "", io.Discard)
}

// Default returns a JSON info-level stdout logger for use before the
// configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child Logger carrying extra attributes, typically the
// component name:
//
//	mgr.SetLogger(log.With("component", "pool"))
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// parseLevel maps debug, info, warn(ing) and error to slog levels, case
// insensitively. Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().Round(time.Microsecond).String())
	}
	return a
}
