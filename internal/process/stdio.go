package process

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// drainSettle bounds how long a drain snapshot waits for an in-flight
// line read to finish before working around it.
const drainSettle = 50 * time.Millisecond

// lineReader serializes line reads of the stdout pipe. A read that
// outlives its caller's timeout stays in flight and its result is
// delivered to the next call, so no output is lost and only one
// goroutine ever touches the buffered reader.
type lineReader struct {
	mu      sync.Mutex
	br      *bufio.Reader
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReader(r)}
}

// next returns the channel carrying the current in-flight read,
// starting a new read if none is outstanding.
func (lr *lineReader) next() chan readResult {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.pending == nil {
		ch := make(chan readResult, 1)
		lr.pending = ch
		go func() {
			line, err := lr.br.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
	}
	return lr.pending
}

// clear marks the in-flight read as consumed.
func (lr *lineReader) clear() {
	lr.mu.Lock()
	lr.pending = nil
	lr.mu.Unlock()
}

// ReadLine reads one line from the process stdout, blocking up to
// timeout. The trailing line terminator is stripped. It returns false
// on timeout, when stdout was not piped, and once the stream is
// exhausted; errors on a dying pipe are treated the same as end of
// stream. A read that times out keeps running and its line is
// returned by a later call.
func (p *Process) ReadLine(timeout time.Duration) (string, bool) {
	if p.reader == nil {
		return "", false
	}

	select {
	case res := <-p.reader.next():
		p.reader.clear()
		if res.line == "" {
			return "", false
		}
		line := strings.TrimSuffix(res.line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return line, true
	case <-time.After(timeout):
		return "", false
	}
}

// Stdout returns a best-effort reader over output the line reader has
// not delivered: a finished read nobody collected, bytes buffered
// ahead of the last line, and whatever still sits in the pipe. It is
// meant for draining after exit; reading it concurrently with
// ReadLine is not supported.
func (p *Process) Stdout() io.Reader {
	if p.reader == nil {
		if p.stdout == nil {
			return nil
		}
		return &drainReader{pipe: p.stdout}
	}

	lr := p.reader
	lr.mu.Lock()
	defer lr.mu.Unlock()

	var head []io.Reader
	busy := false

	if lr.pending != nil {
		// Give an in-flight read a moment to finish; after exit it
		// normally returns at once with EOF or a final line.
		select {
		case res := <-lr.pending:
			lr.pending = nil
			if res.line != "" {
				head = append(head, strings.NewReader(res.line))
			}
		case <-time.After(drainSettle):
			// Still blocked, likely on an inherited pipe held open by
			// a grandchild. The buffered reader belongs to it, so only
			// the raw pipe can be offered.
			busy = true
		}
	}

	if !busy {
		if n := lr.br.Buffered(); n > 0 {
			if buffered, err := lr.br.Peek(n); err == nil {
				stash := append([]byte(nil), buffered...)
				_, _ = lr.br.Discard(n)
				head = append(head, bytes.NewReader(stash))
			}
		}
	}

	d := &drainReader{pipe: p.stdout}
	if len(head) > 0 {
		d.head = io.MultiReader(head...)
	}
	return d
}

// drainReader serves post-exit reads: first any output stranded in
// the line reader, then the raw pipe. SetReadDeadline forwards to the
// pipe so bounded drain reads cannot hang on it.
type drainReader struct {
	head io.Reader
	pipe *os.File
}

func (d *drainReader) Read(b []byte) (int, error) {
	if d.head != nil {
		if n, _ := d.head.Read(b); n > 0 {
			return n, nil
		}
		d.head = nil
	}
	if d.pipe == nil {
		return 0, io.EOF
	}
	return d.pipe.Read(b)
}

func (d *drainReader) SetReadDeadline(t time.Time) error {
	if d.pipe == nil {
		return nil
	}
	return d.pipe.SetReadDeadline(t)
}

// captureStderr collects stderr lines into the bounded ring until the
// stream ends. It runs in its own goroutine for the life of the
// process.
func (p *Process) captureStderr() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		p.stderrBuf.Add(OutputLine{
			Content:   scanner.Text(),
			Stream:    StreamStderr,
			Timestamp: time.Now(),
		})
	}
}

// StderrTail returns the most recent captured stderr lines, oldest
// first. It returns nil when stderr was not piped.
func (p *Process) StderrTail() []string {
	if p.stderrBuf == nil {
		return nil
	}
	lines := p.stderrBuf.Lines()
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Content)
	}
	return out
}
