// Package logging provides the server-wide logger.
//
// HTTPD_LOGGING_MODE selects the zap preset: "prod" for JSON at info level, "nop" to discard
// everything, anything else for the development console logger. HTTPD_LOGGING_LEVEL, when set,
// overrides the level of the preset ("debug" shows every parsed request line).
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// DefaultLogger is the default logger inside the httpd server.
	DefaultLogger Logger
	zapLogger     *zap.Logger
)

func init() {
	var err error
	zapLogger, err = newZapLogger(os.Getenv("HTTPD_LOGGING_MODE"), os.Getenv("HTTPD_LOGGING_LEVEL"))
	if err != nil {
		zapLogger, _ = zap.NewDevelopment()
		zapLogger.Sugar().Warnf("logging: %v, using the development logger", err)
	}
	DefaultLogger = zapLogger.Sugar()
}

func newZapLogger(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "nop":
		return zap.NewNop(), nil
	case "prod":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
		cfg.Level.SetLevel(lvl)
	}
	return cfg.Build()
}

// Cleanup flushes buffered log entries, call it before the process exits.
func Cleanup() {
	_ = zapLogger.Sync()
}

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
	// Fatalf logs messages at FATAL level.
	Fatalf(format string, args ...interface{})
}

// Nop returns a Logger that discards everything, handy in tests.
func Nop() Logger {
	return zap.NewNop().Sugar()
}
