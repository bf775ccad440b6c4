// Package logging provides categorized logging for clai on top of zap.
// Each subsystem logs under its own named logger so log output can be
// filtered per category. Logs go to stderr; the interactive loop owns stdout.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryIndex    Category = "index"    // File index, scanner, watcher
	CategoryCompose  Category = "compose"  // Context composition
	CategoryAction   Category = "action"   // Model output parsing
	CategoryDispatch Category = "dispatch" // Action routing and execution
	CategoryProcs    Category = "procs"    // Process registry
	CategoryProvider Category = "provider" // Model provider calls
	CategoryConfig   Category = "config"   // Configuration loading
	CategoryMain     Category = "main"     // CLI entrypoint
)

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers map[Category]*zap.SugaredLogger
)

func init() {
	// Safe default until Init is called: warnings and above to stderr.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	replaceRoot(l)
}

// Init configures the process-wide logger. verbose enables debug level.
// If logFile is non-empty, log output is appended there instead of stderr,
// which keeps the interactive prompt clean.
func Init(verbose bool, logFile string) error {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stderr)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level)
	replaceRoot(zap.New(core))
	return nil
}

func replaceRoot(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Get returns the sugared logger for a category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if s, ok := loggers[cat]; ok {
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if s, ok := loggers[cat]; ok {
		return s
	}
	s := root.Named(string(cat)).Sugar()
	loggers[cat] = s
	return s
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
