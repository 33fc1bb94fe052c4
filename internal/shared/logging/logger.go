package logging

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines a minimal, printf-style logging contract.
//
// Components depend on this interface rather than on zap directly so tests can
// pass Nop() and call sites stay format-string based.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// Config selects the level and encoding of the process logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output io.Writer
}

var base atomic.Pointer[zap.Logger]

func init() {
	base.Store(newZap(Config{}))
}

// Configure replaces the process logger. Loggers created earlier keep writing
// to the previous core, so call it once at startup before building components.
func Configure(cfg Config) {
	previous := base.Swap(newZap(cfg))
	if previous != nil {
		_ = previous.Sync()
	}
}

// Sync flushes buffered log entries.
func Sync() {
	if l := base.Load(); l != nil {
		_ = l.Sync()
	}
}

func newZap(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func parseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

type componentLogger struct {
	sugar *zap.SugaredLogger
}

// NewComponentLogger returns the process logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return FromZap(base.Load(), component)
}

// FromZap adapts a zap logger to the Logger interface, tagging entries with
// the component name when one is given.
func FromZap(logger *zap.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	if component != "" {
		logger = logger.Named(component)
	}
	return &componentLogger{sugar: logger.Sugar()}
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l *componentLogger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *componentLogger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Redact shortens secrets before they reach a log line.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:4], secret[len(secret)-2:])
}
