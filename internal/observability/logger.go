package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON production logger whose every line carries the
// service name. Unknown or empty levels fall back to info.
func NewLogger(level, service string) (*zap.Logger, error) {
	return loggerConfig(level, service).Build()
}

func loggerConfig(level, service string) zap.Config {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	if service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}
	return cfg
}
