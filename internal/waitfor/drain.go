package waitfor

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// drainDeadline bounds each read against a source that supports read
// deadlines, so draining a closed or empty pipe cannot hang.
const drainDeadline = 10 * time.Millisecond

// deadlineReader is the optional capability drainInto uses to bound
// reads on pipe-backed sources. os.File satisfies it.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// drainInto appends whatever bytes are already available on src to
// buf, decoding them permissively. It never blocks beyond the short
// per-read deadline and never fails: a nil, closed, or exhausted
// source leaves the buffer as it was. Draining an already-drained
// source is a no-op, so it is safe to call repeatedly.
func drainInto(buf *strings.Builder, src io.Reader) {
	if src == nil {
		return
	}

	chunk := make([]byte, 4096)
	for {
		if dr, ok := src.(deadlineReader); ok {
			_ = dr.SetReadDeadline(time.Now().Add(drainDeadline))
		}
		n, err := src.Read(chunk)
		if n > 0 {
			buf.WriteString(decodePermissive(chunk[:n]))
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// decodePermissive converts raw output bytes to a string, replacing
// any invalid UTF-8 with the replacement character rather than
// failing. Child processes are free to write garbage; diagnostics
// still have to render.
func decodePermissive(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string(bytes.ToValidUTF8(b, []byte("�")))
}
