package waitfor

// tryReadLine attempts one bounded-time line read and reports whether
// the expected output is now complete. A timed-out or failed read
// leaves the buffer untouched; deciding what a silent process means is
// the poll loop's job, not the reader's.
func (w *waiter) tryReadLine() bool {
	line, ok := w.proc.ReadLine(w.opts.readTimeout)
	if !ok {
		return false
	}

	// ReadLine strips the terminator, so restore it to keep the buffer
	// faithful to the raw stream.
	w.buf.WriteString(line)
	w.buf.WriteByte('\n')
	return w.satisfied()
}
