package klog

import "io"

// ringBufferSize defines size of the ring buffer that buffers early log
// output. It can hold the contents of a standard 80*25 text-mode console.
// The ring buffer size must always be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures log output before a sink is attached. When the buffer
// fills up the oldest bytes are overwritten.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int

	// overrun is set when unread bytes were overwritten.
	overrun bool
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
			rb.overrun = true
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns io.EOF once the buffer
// has been drained.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && rb.rIndex != rb.wIndex {
		p[n] = rb.buffer[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		n++
	}

	if n == 0 && len(p) != 0 {
		return 0, io.EOF
	}
	return n, nil
}

// drainLines empties the buffer invoking fn for each complete line. If older
// output was overwritten, the first (partial) line is dropped.
func (rb *ringBuffer) drainLines(fn func(line string)) {
	var (
		line []byte
		skip = rb.overrun
	)
	rb.overrun = false

	for rb.rIndex != rb.wIndex {
		b := rb.buffer[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)

		if b != '\n' {
			line = append(line, b)
			continue
		}

		if !skip {
			fn(string(line))
		}
		skip = false
		line = line[:0]
	}
}
