// Package logging provides categorized structured logging for vigil.
// Each subsystem logs under its own named category so a clinical audit
// can be filtered per concern (inference, fallback, crisis, ...).
// Built on zap; a Nop mode keeps tests silent.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot          Category = "boot"          // Startup, config load, template validation
	CategorySession       Category = "session"       // Check-in pipeline orchestration
	CategoryQuestionnaire Category = "questionnaire" // Questionnaire state machine
	CategoryInference     Category = "inference"     // Backend calls, timeouts, latency
	CategoryParser        Category = "parser"        // Output parse strategies and failures
	CategoryFallback      Category = "fallback"      // Deterministic substitute generation
	CategoryStore         Category = "store"         // Longitudinal state persistence
	CategoryCrisis        Category = "crisis"        // Crisis lifecycle transitions
	CategorySignals       Category = "signals"       // Pattern detection, health summaries
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the process-wide root logger. level is one of
// debug/info/warn/error; anything else falls back to info. Safe to call
// more than once (later calls replace the root and drop cached children).
func Initialize(level string, jsonFormat bool) error {
	cfg := zap.NewProductionConfig()
	if !jsonFormat {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	setRoot(logger)
	return nil
}

// UseNop silences all logging. Tests call this instead of Initialize.
func UseNop() {
	setRoot(zap.NewNop())
}

func setRoot(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Get returns the sugared logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	l, ok := loggers[cat]
	mu.RUnlock()
	if ok {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l = root.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
