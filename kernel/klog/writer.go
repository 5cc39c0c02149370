package klog

import "io"

// WriterSink is a Sink that writes formatted log lines to an io.Writer.
// Lines below MinLevel are discarded.
type WriterSink struct {
	W        io.Writer
	MinLevel Level
}

// Log implements Sink.
func (s *WriterSink) Log(level Level, module, msg string) {
	if level < s.MinLevel {
		return
	}
	io.WriteString(s.W, FormatLine(level, module, msg))
}

// lineWriter is an io.Writer that emits one log record for every complete
// line written to it.
type lineWriter struct {
	level   Level
	module  string
	pending []byte
}

// Writer returns an io.Writer that logs each line written to it at the
// requested level. Incomplete trailing lines are emitted when Flush is
// called on the returned writer.
func Writer(level Level, module string) interface {
	io.Writer
	Flush()
} {
	return &lineWriter{level: level, module: module}
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			emit(w.level, w.module, string(w.pending))
			w.pending = w.pending[:0]
			continue
		}
		w.pending = append(w.pending, b)
	}

	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *lineWriter) Flush() {
	if len(w.pending) != 0 {
		emit(w.level, w.module, string(w.pending))
		w.pending = w.pending[:0]
	}
}
