// pkg/logger/logger.go

package logger

import (
	"os"
	"path/filepath"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// PlatformLogPaths lists candidate log file locations in preference order.
// The first writable one wins; deploys usually run as root so the /var/log
// path is the common case.
func PlatformLogPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"/var/log/rdock/rdockctl.log",
		filepath.Join(home, ".rdock", "rdockctl.log"),
	}
}

// FindWritableLogPath returns the first path from PlatformLogPaths whose
// directory can be created and whose file can be opened for append.
func FindWritableLogPath() (string, error) {
	for _, path := range PlatformLogPaths() {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			continue
		}
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			continue
		}
		_ = file.Close()
		return path, nil
	}
	return "", os.ErrPermission
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func DefaultConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// InitializeWithFallback sets up the global logger: console plus JSON file
// sink when a log path is writable, console only otherwise. It also installs
// the otelzap global so packages can log via otelzap.Ctx.
func InitializeWithFallback() {
	path, err := FindWritableLogPath()
	if err != nil {
		log = NewFallbackLogger()
		replaceGlobals(log)
		return
	}

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	var fileSink zapcore.WriteSyncer
	if err != nil {
		fileSink = zapcore.AddSync(os.Stderr)
	} else {
		fileSink = zapcore.AddSync(file)
	}

	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), fileSink, level),
	)

	log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	replaceGlobals(log)
}

// InitFallback initializes a console-only logger if none is set yet. Safe to
// call more than once.
func InitFallback() {
	if log != nil {
		return
	}
	log = NewFallbackLogger()
	replaceGlobals(log)
}

func replaceGlobals(l *zap.Logger) {
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// L returns the global logger, initializing a fallback if needed.
func L() *zap.Logger {
	if log == nil {
		InitFallback()
	}
	return log
}

// Sync flushes buffered log entries. Errors are ignored: stderr sinks
// routinely fail to sync on Linux.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
