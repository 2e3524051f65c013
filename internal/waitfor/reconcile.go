package waitfor

import "time"

// reconcileExit resolves the outcome once the process has been
// observed not running. It is entered at most once per wait call and
// always produces a terminal result; control never returns to the
// poll loop.
func (w *waiter) reconcileExit() (string, error) {
	// Output can land in the pipe a moment after the exit is visible,
	// so pull whatever is already buffered before judging.
	drainInto(&w.buf, w.proc.Stdout())
	if w.satisfied() {
		return w.buf.String(), nil
	}

	code := w.proc.ExitCode()
	if code != 0 {
		w.opts.logger.Error("process exited with code %d before expected output; output: %s",
			code, w.excerpt())
		return "", &WaitError{
			Kind:     ErrAbnormalExit,
			Missing:  w.missing(),
			Excerpt:  w.excerpt(),
			ExitCode: code,
		}
	}

	// Clean exit with the pattern still missing. Grant one grace sleep
	// for a final flush to arrive, then look exactly once more.
	time.Sleep(w.opts.gracePeriod)
	drainInto(&w.buf, w.proc.Stdout())
	if w.satisfied() {
		return w.buf.String(), nil
	}

	w.opts.logger.Warn("process exited cleanly without expected output; output: %s", w.excerpt())
	return "", &WaitError{
		Kind:     ErrCleanExit,
		Missing:  w.missing(),
		Excerpt:  w.excerpt(),
		ExitCode: code,
	}
}
