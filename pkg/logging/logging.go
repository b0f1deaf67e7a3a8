// Package logging is a minimal leveled wrapper around fmt/os.Stderr. The
// teacher repo carries no structured logging dependency anywhere (it logs
// via fmt.Printf/fmt.Fprintf(os.Stderr, ...) in cmd/genpatterns/main.go);
// taintgraph follows that ambient style rather than introduce one.
package logging

import (
	"fmt"
	"os"
	"sync"
)

// Level gates which messages are written.
type Level int

const (
	LevelWarn Level = iota
	LevelInfo
	LevelDebug
)

// Logger writes leveled messages to os.Stderr.
type Logger struct {
	mu    sync.Mutex
	level Level
}

var defaultLogger = &Logger{level: LevelInfo}

// Default returns the package-wide default logger.
func Default() *Logger { return defaultLogger }

// SetLevel adjusts the verbosity of the default logger (e.g. from --verbose).
func SetLevel(l Level) { defaultLogger.SetLevel(l) }

// SetLevel adjusts this logger's verbosity.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(min Level, prefix, format string, args ...interface{}) {
	l.mu.Lock()
	enabled := l.level >= min
	l.mu.Unlock()
	if !enabled {
		return
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// Debugf logs at debug level (dropped detection records, cap-hit notices).
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, "[debug] ", format, args...)
}

// Infof logs at info level (dispatch/progress notices).
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, "[info] ", format, args...)
}

// Warnf logs at warn level (traversal failures).
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, "[warn] ", format, args...)
}
