// Package logger настраивает zap для testgen: JSON в stderr и ротируемый файл.
package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New логгер с уровнем из LOG_LEVEL
func New() *zap.Logger {
	return NewWithLevel(getLogLevel())
}

// NewWithLevel логгер с уровнем из флагов CLI
func NewWithLevel(level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// stdout занят выводом команд (compose, artifacts), логи идут в stderr
	consoleCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)

	// Файл переживает прогон CI как артефакт
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   getLogPath(),
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}),
		level,
	)

	core := zapcore.NewTee(consoleCore, fileCore)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ParseLevel разбирает строковый уровень, неизвестные значения дают info
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// getLogLevel уровень из LOG_LEVEL
func getLogLevel() zapcore.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// getLogPath путь к файлу: LOG_PATH, затем APP_DATA_DIR/testgen.log, затем logs/testgen.log
func getLogPath() string {
	if logPath := os.Getenv("LOG_PATH"); logPath != "" {
		return logPath
	}

	if dataDir := os.Getenv("APP_DATA_DIR"); dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err == nil {
			return filepath.Join(dataDir, "testgen.log")
		}
	}

	if err := os.MkdirAll("logs", 0755); err == nil {
		return "logs/testgen.log"
	}

	return "testgen.log"
}
