// Package logging builds the zap logger shared by the matcher components.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing to stderr at the given level
// (debug, info, warn, error). "off" or "none" returns a no-op logger.
func New(level string) (*zap.Logger, error) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "off" || lvl == "none" {
		return zap.NewNop(), nil
	}

	parsed, err := ParseLevel(lvl)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// ParseLevel parses a level name; the empty string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}

	var l zapcore.Level

	err := l.UnmarshalText([]byte(strings.ToLower(level)))
	if err != nil {
		return l, fmt.Errorf("unknown log level %q", level)
	}

	return l, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
