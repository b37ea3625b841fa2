// Package logging provides config-driven, category-scoped logging for
// Sovereign Stack. Each subsystem writes to its own file under
// <root>/logs/<category>.log; logging is controlled by debug_mode and
// per-category toggles in the loaded configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem's log stream.
type Category string

const (
	CategoryBoot       Category = "boot"
	CategoryCoherence  Category = "coherence"
	CategoryChronicle  Category = "chronicle"
	CategoryGovernance Category = "governance"
	CategorySpiral     Category = "spiral"
	CategoryCompaction Category = "compaction"
	CategoryMCP        Category = "mcp"
	CategoryStorage    Category = "storage"
)

// Settings mirrors the logging section of config.Config, duplicated here
// to avoid an import cycle between config and logging.
type Settings struct {
	DebugMode  bool
	JSONFormat bool
	Level      string
	Categories map[string]bool
}

var (
	mu         sync.RWMutex
	root       string
	settings   Settings
	loggers    = make(map[Category]*Logger)
	loggersErr error
)

// Initialize sets the log root and settings. Safe to call once at process
// startup; subsequent Get calls create per-category loggers lazily.
func Initialize(rootDir string, s Settings) error {
	mu.Lock()
	defer mu.Unlock()
	root = rootDir
	settings = s
	loggers = make(map[Category]*Logger)

	if !settings.DebugMode {
		return nil
	}
	logsDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

func categoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

func zapLevel() zapcore.Level {
	mu.RLock()
	defer mu.RUnlock()
	switch settings.Level {
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

// Logger wraps a zap.SugaredLogger scoped to one category. The zero value
// (returned when a category is disabled) is a safe no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

// Get returns (or lazily creates) the logger for category. When logging is
// disabled for the category, the returned Logger discards everything.
func Get(category Category) *Logger {
	if !categoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	logPath := filepath.Join(root, "logs", fmt.Sprintf("%s.log", category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if settings.JSONFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), zapLevel())
	zl := zap.New(core).With(zap.String("category", string(category)))

	l := &Logger{category: category, sugar: zl.Sugar(), file: file}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and closes every open category logger. Call once at
// shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer measures and logs the duration of an operation on Stop.
type Timer struct {
	logger *Logger
	op     string
	start  time.Time
}

// StartTimer begins timing op under category; call Stop when done.
func StartTimer(category Category, op string) *Timer {
	return &Timer{logger: Get(category), op: op, start: time.Now()}
}

// Stop logs the elapsed duration since StartTimer.
func (t *Timer) Stop() {
	t.logger.Debug("%s completed in %s", t.op, time.Since(t.start))
}
