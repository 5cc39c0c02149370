package klog

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line.
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// Write writes len(p) bytes from p to the underlying writer. The injected
// prefix is not included in the returned byte count.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		chunk := p
		for i, b := range p {
			if b == '\n' {
				chunk = p[:i+1]
				w.midLine = false
				break
			}
		}

		n, err := w.Sink.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}

	return written, nil
}
