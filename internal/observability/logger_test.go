package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugOn   bool
		infoOn    bool
		stackless bool
	}{
		{"debug", true, true, false},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"unknown", false, true, true},
		{"", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.level, "tour-concierge")
			if err != nil {
				t.Fatalf("NewLogger(%q): %v", tt.level, err)
			}
			core := logger.Core()
			if got := core.Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if got := core.Enabled(zapcore.InfoLevel); got != tt.infoOn {
				t.Errorf("info enabled = %v, want %v", got, tt.infoOn)
			}
			if got := loggerConfig(tt.level, "").DisableStacktrace; got != tt.stackless {
				t.Errorf("stacktraces disabled = %v, want %v", got, tt.stackless)
			}
		})
	}
}

func TestLoggerConfig_ServiceField(t *testing.T) {
	cfg := loggerConfig("info", "tour-concierge")
	if got := cfg.InitialFields["service"]; got != "tour-concierge" {
		t.Errorf("service field = %v", got)
	}
	if cfg.EncoderConfig.TimeKey != "ts" {
		t.Errorf("time key = %q", cfg.EncoderConfig.TimeKey)
	}
	if cfg.Encoding != "json" {
		t.Errorf("encoding = %q", cfg.Encoding)
	}

	if bare := loggerConfig("info", ""); bare.InitialFields != nil {
		t.Errorf("unnamed service got fields %v", bare.InitialFields)
	}
}
