package infrastructure

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the zap preset and minimum level
type LogConfig struct {
	// Environment "production" switches to JSON output
	Environment string
	// Level overrides the preset level, e.g. "debug" or "warn"
	Level   string
	Service string
}

// NewLogger builds the process logger. Every entry carries the service name.
func NewLogger(config *LogConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if config.Environment == "production" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.EncoderConfig.MessageKey = "message"

	if config.Level != "" {
		level, err := zap.ParseAtomicLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", config.Level, err)
		}
		zc.Level = level
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if config.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", config.Service)))
	}
	return zc.Build(opts...)
}

// SyncLogger flushes buffered entries. Sync on a terminal fails with a
// PathError, which is not worth reporting.
func SyncLogger(logger *zap.Logger) {
	var pathErr *os.PathError
	if err := logger.Sync(); err != nil && !errors.As(err, &pathErr) {
		fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
	}
}
