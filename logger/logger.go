// Package logger provides a configurable logger that can write to
// multiple outputs. Init must be called early in the application
// lifecycle before using other logger functions; AddOutput and
// SetEnabled return errors if called before Init. Underneath, logging
// is structured via go.uber.org/zap; the package-level functions are a
// thin, driver-friendly facade over one zap.SugaredLogger so call sites
// elsewhere in this module (cluster, gcs, cmd) don't need to know zap's
// API, matching how this repo's CLI and driver packages consume it.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a configurable logger that can write to multiple outputs.
type Logger struct {
	mu      sync.Mutex
	outputs []io.Writer
	prefix  string
	enabled bool
	zl      *zap.SugaredLogger
}

var (
	globalLogger *Logger
	once         sync.Once
	globalBuffer *LogBuffer
	bufferOnce   sync.Once
)

// GetGlobalLogBuffer returns the global log buffer.
func GetGlobalLogBuffer() *LogBuffer {
	bufferOnce.Do(func() {
		globalBuffer = NewLogBuffer(1000)
	})
	return globalBuffer
}

// Init initializes the global logger. writeToStdout controls whether
// os.Stdout is registered as an initial output; additional outputs
// (e.g. the TUI's LogBufferWriter) are added later via AddOutput.
func Init(prefix string, writeToStdout bool) {
	once.Do(func() {
		l := &Logger{prefix: prefix, enabled: true}
		if writeToStdout {
			l.outputs = append(l.outputs, os.Stdout)
		}
		l.rebuildLocked()
		globalLogger = l
	})
}

// rebuildLocked reconstructs the zap core from the current output set.
// Called with mu held.
func (l *Logger) rebuildLocked() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	if len(l.outputs) == 0 {
		l.zl = zap.NewNop().Sugar()
		return
	}
	syncers := make([]zapcore.WriteSyncer, len(l.outputs))
	for i, w := range l.outputs {
		syncers[i] = zapcore.AddSync(w)
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), zap.DebugLevel)
	base := zap.New(core)
	if l.prefix != "" {
		base = base.Named(l.prefix)
	}
	l.zl = base.Sugar()
}

// AddOutput adds an additional output writer (e.g. for the TUI log
// buffer). Returns an error if called before Init.
func AddOutput(w io.Writer) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.outputs = append(globalLogger.outputs, w)
	globalLogger.rebuildLocked()
	return nil
}

// RemoveOutput removes an output writer. Returns an error if called
// before Init.
func RemoveOutput(w io.Writer) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	kept := globalLogger.outputs[:0:0]
	for _, output := range globalLogger.outputs {
		if output != w {
			kept = append(kept, output)
		}
	}
	globalLogger.outputs = kept
	globalLogger.rebuildLocked()
	return nil
}

// SetEnabled enables or disables logging. Returns an error if called
// before Init.
func SetEnabled(enabled bool) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.enabled = enabled
	return nil
}

// Printf logs a formatted message at info level.
func Printf(format string, v ...interface{}) {
	if globalLogger == nil {
		log.Printf(format, v...)
		return
	}
	globalLogger.mu.Lock()
	enabled, zl := globalLogger.enabled, globalLogger.zl
	globalLogger.mu.Unlock()
	if !enabled {
		return
	}
	zl.Info(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

// Print logs a message.
func Print(v ...interface{}) { Printf("%s", fmt.Sprint(v...)) }

// Println logs a message.
func Println(v ...interface{}) { Printf("%s", fmt.Sprintln(v...)) }

// Infof logs an info-level formatted message.
func Infof(format string, v ...interface{}) { Printf(format, v...) }

// Info logs an info-level message.
func Info(v ...interface{}) { Printf("%s", fmt.Sprint(v...)) }

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...interface{}) {
	if globalLogger == nil {
		log.Printf("[ERROR] "+format, v...)
		return
	}
	globalLogger.mu.Lock()
	enabled, zl := globalLogger.enabled, globalLogger.zl
	globalLogger.mu.Unlock()
	if !enabled {
		return
	}
	zl.Error(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

// Error logs an error-level message.
func Error(v ...interface{}) { Errorf("%s", fmt.Sprint(v...)) }

// GetGlobalLogger returns the global logger instance, for testing.
func GetGlobalLogger() *Logger {
	return globalLogger
}
