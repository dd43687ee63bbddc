// Package obslog provides structured logging for the engine using zap.
package obslog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with engine-lifecycle-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance, set up and used by engine.New.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(verbose bool) {
	once.Do(func() {
		L = New(verbose)
	})
}

// New creates a new Logger instance.
func New(verbose bool) *Logger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger, for callers that don't want log noise.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Step logs the execution of a single statement.
func (l *Logger) Step(id string, stepIndex int, line, col int) {
	l.Debug("step",
		zap.String("engine", id),
		zap.Int("step", stepIndex),
		zap.Int("line", line),
		zap.Int("col", col),
	)
}

// Snapshot logs a recorded or restored snapshot.
func (l *Logger) Snapshot(id string, action string, index int) {
	l.Debug("snapshot",
		zap.String("engine", id),
		zap.String("action", action),
		zap.Int("index", index),
	)
}

// Alloc logs a heap allocation.
func (l *Logger) Alloc(id string, addr, size uint64) {
	l.Debug("alloc",
		zap.String("engine", id),
		Addr(addr),
		Size(size),
	)
}

// Free logs a heap deallocation.
func (l *Logger) Free(id string, addr uint64) {
	l.Debug("free",
		zap.String("engine", id),
		Addr(addr),
	)
}

// Fault logs a runtime error surfaced to the caller.
func (l *Logger) Fault(id string, kind string, detail string) {
	l.Warn("fault",
		zap.String("engine", id),
		zap.String("kind", kind),
		zap.String("detail", detail),
	)
}

// Call logs a function call and the frame depth it reaches; returns are not
// logged.
func (l *Logger) Call(id string, fn string, depth int) {
	l.Debug("call",
		zap.String("engine", id),
		Fn(fn),
		zap.Int("depth", depth),
	)
}

// Hex formats a uint64 as hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
