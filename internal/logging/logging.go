// Package logging builds the process logger: slog call sites backed by a zap core.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a zap level.
// Unknown values fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a logger writing to stdout. format is "json" or "console".
// The returned sync function flushes buffered entries and should run before exit.
func New(level, format, serviceName string) (*slog.Logger, func() error) {
	return NewWithWriter(os.Stdout, level, format, serviceName)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format, serviceName string) (*slog.Logger, func() error) {
	ws := zapcore.AddSync(w)
	core := zapcore.NewCore(newEncoder(format), ws, zap.NewAtomicLevelAt(ParseLevel(level)))

	if serviceName != "" {
		core = core.With([]zapcore.Field{zap.String("service_name", serviceName)})
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		core = core.With([]zapcore.Field{zap.String("hostname", hostname)})
	}

	return slog.New(zapslog.NewHandler(core)), ws.Sync
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}
