package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalLogger *slog.Logger

// Options configures the process logger.
type Options struct {
	Level      string
	File       string    // empty means Output
	Output     io.Writer // defaults to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a config string onto a zap level, defaulting to info.
func ParseLevel(levelStr string) (zapcore.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return zapcore.DebugLevel, true
	case "INFO", "":
		return zapcore.InfoLevel, true
	case "WARN", "WARNING":
		return zapcore.WarnLevel, true
	case "ERROR":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// New builds the zap logger used by the whole process. When File is set the output
// is rotated by lumberjack.
func New(opts Options) (*zap.Logger, error) {
	level, ok := ParseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", opts.File, err)
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	zl := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if !ok {
		zl.Warn("Invalid log level string, defaulting to INFO", zap.String("input", opts.Level))
	}
	return zl, nil
}

// InitSlog routes the global slog logger, and the helpers below, through zl.
func InitSlog(zl *zap.Logger) {
	globalLogger = slog.New(zapslog.NewHandler(zl.Core()))
	slog.SetDefault(globalLogger)
}

func ensureInitialized() {
	if globalLogger == nil {
		globalLogger = slog.Default()
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
	os.Exit(1)
}
