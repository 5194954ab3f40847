package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/irclimate/internal/infrastructure/config"
)

const serviceName = "irclimate"

// Output destinations accepted by logging.output.
const (
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	OutputDiscard = "discard"
)

// Logger wraps slog.Logger with bridge-wide default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates the process logger.
//
// Every entry carries service, version and, when set, bridge_id so logs from
// several bridges on one collector can be told apart.
//
// Parameters:
//   - cfg: logging section of the config file
//   - version: build version
//   - bridgeID: bridge.id from config; empty before config is loaded
//
// Returns:
//   - *Logger: configured logger
func New(cfg config.LoggingConfig, version, bridgeID string) *Logger {
	return newWithWriter(cfg, version, bridgeID, outputFor(cfg.Output))
}

func outputFor(name string) io.Writer {
	switch strings.ToLower(name) {
	case OutputStderr:
		return os.Stderr
	case OutputDiscard:
		return io.Discard
	default:
		return os.Stdout
	}
}

func newWithWriter(cfg config.LoggingConfig, version, bridgeID string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}
	if bridgeID != "" {
		attrs = append(attrs, slog.String("bridge_id", bridgeID))
	}

	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

// parseLevel maps debug, info, warn/warning and error to slog levels.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child logger tagged with the subsystem name.
//
// Example:
//
//	mqttLog := log.Component("mqtt")
//	mqttLog.Warn("reconnecting") // component=mqtt
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the logger used before configuration is loaded: JSON on
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: OutputStdout}, "dev", "")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(config.LoggingConfig{Output: OutputDiscard}, "test", "")
}
