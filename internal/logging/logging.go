// Package logging adapts go.alis.build/alog to the formula engine and the
// command-line tools. alog keeps one process-wide level; Logger adds
// key=value fields on top of it.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.alis.build/alog"
)

var levelNames = map[string]alog.LogLevel{
	"TRACE":   alog.LevelDebug,
	"DEBUG":   alog.LevelDebug,
	"INFO":    alog.LevelInfo,
	"NOTICE":  alog.LevelNotice,
	"WARN":    alog.LevelWarning,
	"WARNING": alog.LevelWarning,
	"ERROR":   alog.LevelError,
}

var current atomic.Int64

// ParseLevel maps a level name, in any case, to an alog level.
func ParseLevel(name string) (alog.LogLevel, bool) {
	level, ok := levelNames[strings.ToUpper(strings.TrimSpace(name))]
	return level, ok
}

// SetLevel sets the minimum level for the whole process.
func SetLevel(level alog.LogLevel) {
	current.Store(int64(level))
	alog.SetLevel(level)
}

// SetLevelFromEnv reads LOG_LEVEL, falling back to INFO.
func SetLevelFromEnv() alog.LogLevel {
	level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		level = alog.LevelInfo
	}
	SetLevel(level)
	return level
}

// Level returns the level last passed to SetLevel.
func Level() alog.LogLevel {
	return alog.LogLevel(current.Load())
}

// Enabled reports whether a message at level would be written.
func Enabled(level alog.LogLevel) bool {
	return level >= Level()
}

// Logger satisfies formula.Logger. A nil *Logger is silent.
type Logger struct {
	fields string
}

func New() *Logger {
	return &Logger{}
}

// With returns a logger that prefixes every message with key=value.
func (l *Logger) With(key string, value any) *Logger {
	c := Logger{}
	if l != nil {
		c = *l
	}
	c.fields += fmt.Sprintf("%s=%v ", key, value)
	return &c
}

func (l *Logger) message(format string, args []any) string {
	return l.fields + fmt.Sprintf(format, args...)
}

func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	if l != nil {
		alog.Debug(ctx, l.message(format, args))
	}
}

func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	if l != nil {
		alog.Info(ctx, l.message(format, args))
	}
}

func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	if l != nil {
		alog.Warn(ctx, l.message(format, args))
	}
}

func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	if l != nil {
		alog.Error(ctx, l.message(format, args))
	}
}
