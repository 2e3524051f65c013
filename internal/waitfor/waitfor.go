package waitfor

import (
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/procwait/internal/logging"
)

// Defaults for a wait call. All of them can be overridden per call
// through options.
const (
	// DefaultReadTimeout bounds a single line-read attempt.
	DefaultReadTimeout = 100 * time.Millisecond

	// DefaultPollInterval is the sleep between poll iterations.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultGracePeriod is the single grace sleep granted after a
	// clean exit with the pattern still missing.
	DefaultGracePeriod = 100 * time.Millisecond

	// DefaultBufferSize is the initial capacity of the output buffer.
	DefaultBufferSize = 4096

	// DefaultExcerptLength bounds the output excerpt carried in errors
	// and log lines.
	DefaultExcerptLength = 200
)

// Process is the supervised child process a wait call observes.
// The waiter only reads; it never writes to or closes the process
// streams, which remain owned by the supervisor.
type Process interface {
	// IsRunning reports whether the process is still running.
	// Non-blocking.
	IsRunning() bool

	// ExitCode returns the process exit code, or -1 if the process has
	// not exited. Stable once the process has exited.
	ExitCode() int

	// ReadLine reads one line from the process stdout, blocking up to
	// timeout. The trailing line terminator is stripped. Returns false
	// on timeout and when no more lines will arrive; it never fails.
	ReadLine(timeout time.Duration) (string, bool)

	// Stdout returns the raw stdout stream for best-effort drain reads
	// after the process has exited. May return nil.
	Stdout() io.Reader
}

// Option configures a single wait call.
type Option func(*options)

type options struct {
	readTimeout  time.Duration
	pollInterval time.Duration
	gracePeriod  time.Duration
	bufferSize   int
	excerptLen   int
	logger       *logging.Logger
	preds        []predicate
}

// predicate is an extra named condition layered on top of the part
// containment check.
type predicate struct {
	name string
	fn   func(buffer string) bool
}

func defaultOptions() options {
	return options{
		readTimeout:  DefaultReadTimeout,
		pollInterval: DefaultPollInterval,
		gracePeriod:  DefaultGracePeriod,
		bufferSize:   DefaultBufferSize,
		excerptLen:   DefaultExcerptLength,
		logger:       logging.Default(),
	}
}

// WithReadTimeout sets the per-attempt line read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithPollInterval sets the sleep between poll iterations.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithGracePeriod sets the single grace sleep granted after a clean
// exit before the output is checked one last time.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.gracePeriod = d
		}
	}
}

// WithBufferSize sets the initial capacity of the output buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithExcerptLength sets the bound on output excerpts in errors and
// log lines.
func WithExcerptLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.excerptLen = n
		}
	}
}

// WithLogger sets the logger used for exit reporting.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPredicate adds an extra condition that must also hold for the
// wait to succeed. The name appears in error messages alongside any
// missing parts.
func WithPredicate(name string, fn func(buffer string) bool) Option {
	return func(o *options) {
		o.preds = append(o.preds, predicate{name: name, fn: fn})
	}
}

// waiter holds the state of one wait call. All of it is created at
// call entry and discarded on return; nothing is shared across calls.
type waiter struct {
	proc  Process
	parts []string
	opts  options
	buf   strings.Builder
}

// Wait blocks until every part appears in the stdout of proc, the
// process exits, or timeout elapses. On success it returns the full
// accumulated output, including everything observed before the match
// completed.
//
// Exactly one of three failures is returned otherwise: ErrTimeout when
// the deadline passes first, ErrAbnormalExit when the process exits
// non-zero before the output appears, and ErrCleanExit when it exits
// with code zero without ever producing the output. All three unwrap
// from the returned *WaitError.
//
// Wait owns its buffer exclusively and assumes it is the only reader
// of the process stdout for the duration of the call. Concurrent
// waiters on one process are not supported.
func Wait(proc Process, parts []string, timeout time.Duration, opts ...Option) (string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.WithComponent("waitfor")

	w := &waiter{proc: proc, parts: parts, opts: o}
	w.buf.Grow(o.bufferSize)
	return w.run(timeout)
}

// run is the poll loop. Each iteration either reads one line from a
// running process or hands a stopped one to the exit reconciler, whose
// outcome is always terminal.
func (w *waiter) run(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if !w.proc.IsRunning() {
			return w.reconcileExit()
		}
		if w.tryReadLine() {
			return w.buf.String(), nil
		}
		time.Sleep(w.opts.pollInterval)
	}

	// The match may have landed on the very last iteration, after the
	// loop condition was already decided.
	if w.satisfied() {
		return w.buf.String(), nil
	}
	return "", &WaitError{
		Kind:     ErrTimeout,
		Missing:  w.missing(),
		Excerpt:  w.excerpt(),
		ExitCode: w.proc.ExitCode(),
	}
}

// satisfied reports whether the accumulated output meets every
// expectation of this call.
func (w *waiter) satisfied() bool {
	buf := w.buf.String()
	if !Matches(buf, w.parts) {
		return false
	}
	for _, p := range w.opts.preds {
		if !p.fn(buf) {
			return false
		}
	}
	return true
}

// missing describes the parts and conditions still unmet, for error
// messages.
func (w *waiter) missing() string {
	buf := w.buf.String()
	var miss []string
	for _, part := range w.parts {
		if !strings.Contains(buf, part) {
			miss = append(miss, strconv.Quote(part))
		}
	}
	for _, p := range w.opts.preds {
		if !p.fn(buf) {
			miss = append(miss, p.name)
		}
	}
	if len(miss) == 0 {
		return "expected output"
	}
	return strings.Join(miss, ", ")
}

// excerpt returns a bounded prefix of the accumulated output.
func (w *waiter) excerpt() string {
	return truncate(w.buf.String(), w.opts.excerptLen)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
