// Package logger sets up the process-wide zap logger. Console output is
// always on; file output with rotation is enabled when a path is configured.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Config controls log level and optional rotated file output.
type Config struct {
	Level      string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds the global logger. Safe to call more than once; only the first
// call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		level := zapcore.InfoLevel
		if err := level.Set(cfg.Level); err != nil {
			level = zapcore.InfoLevel
		}

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stdout),
			level,
		)

		core := consoleCore
		if cfg.OutputPath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err == nil {
				fileWriter := zapcore.AddSync(&lumberjack.Logger{
					Filename:   cfg.OutputPath,
					MaxSize:    orDefault(cfg.MaxSizeMB, 20),
					MaxBackups: orDefault(cfg.MaxBackups, 3),
					MaxAge:     orDefault(cfg.MaxAgeDays, 14),
					Compress:   true,
				})
				fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level)
				core = zapcore.NewTee(consoleCore, fileCore)
			}
		}

		global = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	})
}

// L returns the global logger, initializing a default one if needed.
func L() *zap.Logger {
	if global == nil {
		Init(Config{Level: "info"})
	}
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
