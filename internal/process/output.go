package process

import (
	"strings"
	"sync"
	"time"
)

// OutputStream identifies the source stream of a captured line.
type OutputStream int

const (
	// StreamStdout is standard output.
	StreamStdout OutputStream = iota
	// StreamStderr is standard error.
	StreamStderr
)

// String returns the stream name.
func (s OutputStream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// OutputLine represents a single captured line of output.
type OutputLine struct {
	// Content is the line content (without newline).
	Content string

	// Stream identifies the source (stdout or stderr).
	Stream OutputStream

	// Timestamp is when the line was received.
	Timestamp time.Time

	// LineNumber is the sequential line number (1-based), counting
	// every line ever added, including ones the ring has evicted.
	LineNumber int
}

// OutputBuffer is a bounded ring of recent output lines. Once full,
// each added line evicts the oldest, so memory stays constant no
// matter how chatty the process is.
type OutputBuffer struct {
	lines    []OutputLine
	capacity int
	head     int
	count    int
	seq      int
	mu       sync.RWMutex
}

// NewOutputBuffer creates a new ring buffer with the given capacity.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = DefaultStderrLines
	}
	return &OutputBuffer{
		lines:    make([]OutputLine, capacity),
		capacity: capacity,
	}
}

// Add appends a line, evicting the oldest when full. The line's
// LineNumber is assigned here.
func (b *OutputBuffer) Add(line OutputLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	line.LineNumber = b.seq

	idx := (b.head + b.count) % b.capacity
	b.lines[idx] = line

	if b.count < b.capacity {
		b.count++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
}

// Lines returns the retained lines, oldest first.
func (b *OutputBuffer) Lines() []OutputLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]OutputLine, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % b.capacity
		result[i] = b.lines[idx]
	}
	return result
}

// Tail returns the most recent n retained lines, oldest first.
func (b *OutputBuffer) Tail(n int) []OutputLine {
	lines := b.Lines()
	if n <= 0 || len(lines) == 0 {
		return nil
	}
	if n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// Count returns the number of retained lines.
func (b *OutputBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// TotalLines returns the number of lines ever added, including
// evicted ones.
func (b *OutputBuffer) TotalLines() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// String returns the retained lines joined with newlines.
func (b *OutputBuffer) String() string {
	lines := b.Lines()
	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line.Content)
	}
	return sb.String()
}

// Clear empties the buffer. Line numbering continues from where it
// left off.
func (b *OutputBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}
