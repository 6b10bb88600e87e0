package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		mode, level string
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{"prod", "", zapcore.InfoLevel, zapcore.DebugLevel},
		{"", "", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"PROD", "debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"dev", "error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		l, err := newZapLogger(tt.mode, tt.level)
		if err != nil {
			t.Fatalf("newZapLogger(%q, %q): %v", tt.mode, tt.level, err)
		}
		if ce := l.Check(tt.enabled, "x"); ce == nil {
			t.Errorf("mode %q level %q: %s disabled", tt.mode, tt.level, tt.enabled)
		}
		if ce := l.Check(tt.disabled, "x"); ce != nil {
			t.Errorf("mode %q level %q: %s enabled", tt.mode, tt.level, tt.disabled)
		}
	}
}

func TestNewZapLoggerNop(t *testing.T) {
	l, err := newZapLogger("nop", "debug")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.FatalLevel) {
		t.Fatal("nop logger enabled")
	}
}

func TestNewZapLoggerBadLevel(t *testing.T) {
	if _, err := newZapLogger("prod", "loud"); err == nil {
		t.Fatal("accepted an unknown level")
	}
}
