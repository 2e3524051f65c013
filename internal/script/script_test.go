package script

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/procwait/internal/logging"
)

// writeScript writes a Lua script to a temp file and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "match.lua")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeScript(t, `
function match(buffer)
    return string.find(buffer, "READY") ~= nil
end
`)

	m, err := Load(path, WithLogger(logging.Null))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	defer m.Close()

	if !m.Match("booting\nREADY\n") {
		t.Error("expected match for buffer containing READY")
	}
	if m.Match("still booting") {
		t.Error("expected no match for buffer without READY")
	}
}

func TestLoad_NoMatchFunction(t *testing.T) {
	path := writeScript(t, `local x = 1`)

	_, err := Load(path, WithLogger(logging.Null))
	if !errors.Is(err, ErrNoMatchFunction) {
		t.Errorf("expected ErrNoMatchFunction, got %v", err)
	}
}

func TestLoad_MatchNotAFunction(t *testing.T) {
	path := writeScript(t, `match = "not a function"`)

	_, err := Load(path, WithLogger(logging.Null))
	if !errors.Is(err, ErrNoMatchFunction) {
		t.Errorf("expected ErrNoMatchFunction, got %v", err)
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	path := writeScript(t, `function match(buffer`)

	_, err := Load(path, WithLogger(logging.Null))
	if err == nil {
		t.Error("expected error for syntax error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such.lua"), WithLogger(logging.Null))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMatcher_Truthiness(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "true",
			body: `function match(b) return true end`,
			want: true,
		},
		{
			name: "false",
			body: `function match(b) return false end`,
			want: false,
		},
		{
			name: "nil",
			body: `function match(b) return nil end`,
			want: false,
		},
		{
			name: "string is truthy",
			body: `function match(b) return "yes" end`,
			want: true,
		},
		{
			name: "zero is truthy in lua",
			body: `function match(b) return 0 end`,
			want: true,
		},
		{
			name: "no return",
			body: `function match(b) end`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeScript(t, tt.body), WithLogger(logging.Null))
			if err != nil {
				t.Fatalf("failed to load script: %v", err)
			}
			defer m.Close()

			if got := m.Match("anything"); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatcher_BufferArgument(t *testing.T) {
	path := writeScript(t, `
function match(buffer)
    return string.find(buffer, "token=abc", 1, true) ~= nil
        and string.find(buffer, "port=9000", 1, true) ~= nil
end
`)

	m, err := Load(path, WithLogger(logging.Null))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	defer m.Close()

	if !m.Match("READY|token=abc|port=9000") {
		t.Error("expected match when both markers present")
	}
	if m.Match("READY|token=abc") {
		t.Error("expected no match when one marker missing")
	}
}

func TestMatcher_RuntimeErrorLoggedOnce(t *testing.T) {
	path := writeScript(t, `
function match(buffer)
    return nosuchfunction(buffer)
end
`)

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelWarn, Output: &buf})

	m, err := Load(path, WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	defer m.Close()

	if m.Match("x") {
		t.Error("expected failing script to report no match")
	}
	if m.Match("y") {
		t.Error("expected failing script to report no match")
	}

	if got := strings.Count(buf.String(), "match script"); got != 1 {
		t.Errorf("expected failure logged exactly once, got %d:\n%s", got, buf.String())
	}
}

func TestMatcher_Sandbox(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "io removed",
			body: `function match(b) return io ~= nil end`,
		},
		{
			name: "os removed",
			body: `function match(b) return os ~= nil end`,
		},
		{
			name: "dofile removed",
			body: `function match(b) return dofile ~= nil end`,
		},
		{
			name: "require removed",
			body: `function match(b) return require ~= nil end`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeScript(t, tt.body), WithLogger(logging.Null))
			if err != nil {
				t.Fatalf("failed to load script: %v", err)
			}
			defer m.Close()

			if m.Match("x") {
				t.Error("expected sandboxed global to be absent")
			}
		})
	}
}

func TestMatcher_EvalTimeout(t *testing.T) {
	path := writeScript(t, `
function match(buffer)
    while true do end
end
`)

	m, err := Load(path, WithLogger(logging.Null), WithEvalTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	defer m.Close()

	start := time.Now()
	if m.Match("x") {
		t.Error("expected looping script to report no match")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("evaluation was not bounded: %v", elapsed)
	}
}

func TestMatcher_AfterClose(t *testing.T) {
	m, err := Load(writeScript(t, `function match(b) return true end`), WithLogger(logging.Null))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}

	m.Close()
	m.Close() // idempotent

	if m.Match("x") {
		t.Error("expected no match after Close")
	}
}

func TestMatcher_Name(t *testing.T) {
	m, err := Load(writeScript(t, `function match(b) return true end`), WithLogger(logging.Null))
	if err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	defer m.Close()

	if got := m.Name(); got != "script match.lua" {
		t.Errorf("expected 'script match.lua', got %q", got)
	}
}
