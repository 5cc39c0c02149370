package emu

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/sirupsen/logrus"
)

// LogrusSink forwards kernel log lines to a logrus logger. The kernel
// module is attached as the "module" field.
type LogrusSink struct {
	Logger *logrus.Logger
}

// NewLogrusSink returns a sink for logger, or for the standard logrus
// logger if logger is nil.
func NewLogrusSink(logger *logrus.Logger) *LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusSink{Logger: logger}
}

// Log implements klog.Sink.
func (s *LogrusSink) Log(level klog.Level, module, msg string) {
	entry := s.Logger.WithField("module", module)
	if level == klog.LevelFatal {
		entry = entry.WithField("fatal", true)
	}
	entry.Log(logrusLevel(level), msg)
}

// logrusLevel maps a kernel log level to a logrus level. Fatal kernel lines
// are logged as errors since the halt is reported separately.
func logrusLevel(level klog.Level) logrus.Level {
	switch level {
	case klog.LevelDebug:
		return logrus.DebugLevel
	case klog.LevelInfo:
		return logrus.InfoLevel
	case klog.LevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
