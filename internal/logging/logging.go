package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// New builds a zap logger. format "console" gives a development encoder, anything else JSON.
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// WithTrace attaches trace_id and span_id from ctx when a span is active.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID, spanID, ok := telemetry.TraceFields(ctx)
	if !ok {
		return logger
	}
	return logger.With(zap.String("trace_id", traceID), zap.String("span_id", spanID))
}
