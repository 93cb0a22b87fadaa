// Package logging provides the process-wide structured logger used by every
// core subsystem, backed by go.uber.org/zap.
package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance and synchronization
var (
	Logger   *zap.SugaredLogger
	loggerMu sync.RWMutex
	isInited bool
	initOnce sync.Once // For lazy initialization in GetLogger
)

// LogLevel represents logging verbosity
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	OutputPath string // Empty for stderr, or file path
	Format     string // "json" or "console"
}

// Init initializes the global logger with the given configuration.
// This should be called once at application startup. Subsequent calls to
// Init return an error to prevent multiple initialization.
func Init(config Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return fmt.Errorf("logger already initialized; call Close() first to reinitialize")
	}

	zapCfg := zap.NewProductionConfig()
	if config.Format != "json" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if config.OutputPath != "" {
		if err := os.MkdirAll(dirOf(config.OutputPath), 0o750); err != nil {
			return err
		}
		zapCfg.OutputPaths = []string{config.OutputPath}
		zapCfg.ErrorOutputPaths = []string{config.OutputPath}
	}

	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel(config.Level))

	logger, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}

	Logger = logger.Sugar()
	isInited = true
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitDefault initializes the logger with sensible defaults: INFO level,
// stderr, human-readable console encoding. Safe to call multiple times; only
// the first call takes effect.
func InitDefault() {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return
	}

	devCfg := zap.NewDevelopmentConfig()
	devCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	dev, err := devCfg.Build()
	if err != nil {
		// The development config only fails on encoder/sink
		// misconfiguration, which never happens with the built-in defaults.
		panic(err)
	}
	Logger = dev.Sugar()
	isInited = true
}

// Close flushes and closes the logger. Safe to call multiple times.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if !isInited {
		return nil
	}

	err := Logger.Sync()
	Logger = nil
	isInited = false
	initOnce = sync.Once{}
	return err
}

// GetLogger returns the current logger, lazily initializing with defaults on
// first use.
func GetLogger() *zap.SugaredLogger {
	loggerMu.RLock()
	if isInited {
		logger := Logger
		loggerMu.RUnlock()
		return logger
	}
	loggerMu.RUnlock()

	initOnce.Do(InitDefault)

	loggerMu.RLock()
	logger := Logger
	loggerMu.RUnlock()
	return logger
}

func Debug(msg string, args ...any) { GetLogger().Debugw(msg, args...) }
func Info(msg string, args ...any)  { GetLogger().Infow(msg, args...) }
func Warn(msg string, args ...any)  { GetLogger().Warnw(msg, args...) }
func Error(msg string, args ...any) { GetLogger().Errorw(msg, args...) }
