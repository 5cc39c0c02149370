// Package klog implements the severity-tagged kernel log.
//
// Every line has the form "[module] LEVEL: message". Lines emitted before a
// sink is attached are kept in a small ring buffer and replayed into the
// first sink passed to SetSink.
package klog

import (
	"fmt"

	"github.com/jamesMFelder/FelineOS-sub000/kernel/sync"
)

// Level describes the severity of a log line.
type Level uint8

// The supported log levels in increasing order of severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String implements fmt.Stringer for Level.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// Sink receives fully formatted log messages.
type Sink interface {
	Log(level Level, module, msg string)
}

var (
	// lock serializes access to the active sink and the early buffer.
	lock sync.Spinlock

	// activeSink receives all log output. If nil, output is appended to
	// earlyBuffer.
	activeSink Sink

	earlyBuffer ringBuffer
)

// SetSink directs all subsequent log output to s and returns the previously
// active sink. Any lines accumulated in the early ring buffer are replayed
// into s. Passing nil restores buffering.
func SetSink(s Sink) Sink {
	lock.Acquire()
	defer lock.Release()

	prev := activeSink
	activeSink = s
	if s != nil {
		earlyBuffer.drainLines(func(line string) {
			if level, module, msg, ok := parseLine(line); ok {
				s.Log(level, module, msg)
			}
		})
	}

	return prev
}

// Logf formats a message and emits it at the requested level.
func Logf(level Level, module, format string, args ...interface{}) {
	emit(level, module, fmt.Sprintf(format, args...))
}

// Debugf emits a debug message for module.
func Debugf(module, format string, args ...interface{}) { Logf(LevelDebug, module, format, args...) }

// Infof emits an informational message for module.
func Infof(module, format string, args ...interface{}) { Logf(LevelInfo, module, format, args...) }

// Warnf emits a warning for module.
func Warnf(module, format string, args ...interface{}) { Logf(LevelWarn, module, format, args...) }

// Errorf emits an error message for module.
func Errorf(module, format string, args ...interface{}) { Logf(LevelError, module, format, args...) }

func emit(level Level, module, msg string) {
	lock.Acquire()
	defer lock.Release()

	if activeSink != nil {
		activeSink.Log(level, module, msg)
		return
	}

	earlyBuffer.Write([]byte(FormatLine(level, module, msg)))
}

// FormatLine renders a log record using the canonical kernel log layout
// including the trailing line feed.
func FormatLine(level Level, module, msg string) string {
	return "[" + module + "] " + level.String() + ": " + msg + "\n"
}

// parseLine performs the reverse operation of FormatLine. The trailing line
// feed is optional.
func parseLine(line string) (Level, string, string, bool) {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}

	if len(line) < 2 || line[0] != '[' {
		return 0, "", "", false
	}

	end := 1
	for end < len(line) && line[end] != ']' {
		end++
	}
	if end+2 > len(line) {
		return 0, "", "", false
	}

	module, rest := line[1:end], line[end+2:]
	for level, name := range levelNames {
		prefix := name + ": "
		if len(rest) >= len(prefix) && rest[:len(prefix)] == prefix {
			return Level(level), module, rest[len(prefix):], true
		}
	}

	return 0, "", "", false
}
