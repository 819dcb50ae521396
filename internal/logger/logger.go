package logger

import (
	"fmt"
	"sync/atomic"

	"github.com/TheZeroSlave/zapsentry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// root logger
var log atomic.Pointer[Logger]

// ValidLogLevels lists the levels accepted in configuration files.
var ValidLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

const defaultLevel = "info"

// Logger is a sugared zap logger carrying the component it logs for.
// Loggers derived with WithComponent share the atomic level of their parent.
type Logger struct {
	*zap.SugaredLogger

	atomicLevel zap.AtomicLevel
	component   string
}

// LoggingConfig is the subset of the logging configuration the logger needs.
type LoggingConfig interface {
	GetComponentLevel(component string) string
	GetDefaultLevel() string
	IsDevelopment() bool
}

// zapConfig returns the console config in development and the JSON production config otherwise.
func zapConfig(level zapcore.Level, development bool) zap.Config {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg
}

// NewLogger builds a root logger at level, one of debug, info, warn or error.
// When Sentry is enabled, error entries are forwarded to it as well.
func NewLogger(level string, development bool) (*Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zapConfig(zapLevel, development)
	built, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if core := currentSentryCore(); core != nil {
		built = zapsentry.AttachCoreToLogger(core, built)
	}

	return &Logger{SugaredLogger: built.Sugar(), atomicLevel: cfg.Level}, nil
}

// NewComponentLogger creates a logger tagged with the given component.
// It panics on an invalid level, so it is meant for start-up wiring only.
func NewComponentLogger(component, level string, development bool) *Logger {
	l, err := NewLogger(level, development)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger for component %s: %v", component, err))
	}

	return l.WithComponent(component)
}

// NewComponentLoggerFromConfig creates a component logger using the component specific level
// from cfg. A nil config yields an info level production logger.
func NewComponentLoggerFromConfig(component string, cfg LoggingConfig) *Logger {
	if cfg == nil {
		return NewComponentLogger(component, defaultLevel, false)
	}

	return NewComponentLogger(component, cfg.GetComponentLevel(component), cfg.IsDevelopment())
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		atomicLevel:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// WithComponent returns a child logger adding a component field to every entry.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		SugaredLogger: l.With("component", component),
		atomicLevel:   l.atomicLevel,
		component:     component,
	}
}

// GetComponent returns the component name, empty for root loggers.
func (l *Logger) GetComponent() string {
	return l.component
}

// GetLevel returns the current level as a string.
func (l *Logger) GetLevel() string {
	return l.atomicLevel.Level().String()
}

// SetLevel changes the level of this logger and every logger sharing its level.
func (l *Logger) SetLevel(level string) error {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}

	l.atomicLevel.SetLevel(zapLevel)
	return nil
}

func (l *Logger) Close() error {
	return l.Sync()
}

// GetDefaultLogger returns the process wide logger, an info level production
// logger created on first use.
func GetDefaultLogger() *Logger {
	if l := log.Load(); l != nil {
		return l
	}

	l, err := NewLogger(defaultLevel, false)
	if err != nil {
		panic(err)
	}
	if !log.CompareAndSwap(nil, l) {
		return log.Load()
	}
	return l
}
