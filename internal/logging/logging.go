// logging.go — Structured logger construction/injection, built on
// go.uber.org/zap: module-scoped loggers with fields rather than format
// strings, threaded through constructors so call sites can be
// unit-tested against a recorded core.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger at the given level ("debug", "info", "warn",
// "error"), writing structured JSON to stderr. Unknown levels fall back
// to "info".
func New(level string) *zap.Logger {
	lvl := parseLevel(level)
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		// Config.Build only fails on encoder/sink misconfiguration, which
		// cannot happen with the production defaults above.
		return zap.NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything, for tests that don't
// care about log output.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// RunFields returns the zap fields every log line in a run's lifecycle
// should carry, keeping correlation consistent across components.
func RunFields(runID, phase string) []zap.Field {
	return []zap.Field{
		zap.String("run_id", runID),
		zap.String("phase", phase),
	}
}
