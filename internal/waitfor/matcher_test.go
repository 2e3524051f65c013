package waitfor

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		parts  []string
		want   bool
	}{
		{
			name:   "empty parts match empty buffer",
			buffer: "",
			parts:  nil,
			want:   true,
		},
		{
			name:   "empty parts match any buffer",
			buffer: "some output",
			parts:  []string{},
			want:   true,
		},
		{
			name:   "single part present",
			buffer: "server listening on :8080",
			parts:  []string{"listening"},
			want:   true,
		},
		{
			name:   "single part absent",
			buffer: "server starting",
			parts:  []string{"listening"},
			want:   false,
		},
		{
			name:   "all parts present in any order",
			buffer: "READY|token=abc|port=9000",
			parts:  []string{"port=", "READY", "token="},
			want:   true,
		},
		{
			name:   "one of several parts missing",
			buffer: "READY|token=abc",
			parts:  []string{"READY", "token=", "port="},
			want:   false,
		},
		{
			name:   "parts may overlap in the buffer",
			buffer: "READY",
			parts:  []string{"READ", "ADY", "READY"},
			want:   true,
		},
		{
			name:   "repeated part counted once",
			buffer: "ok",
			parts:  []string{"ok", "ok"},
			want:   true,
		},
		{
			name:   "matching is case sensitive",
			buffer: "ready",
			parts:  []string{"READY"},
			want:   false,
		},
		{
			name:   "part spanning lines does not match",
			buffer: "REA\nDY",
			parts:  []string{"READY"},
			want:   false,
		},
		{
			name:   "empty part always matches",
			buffer: "",
			parts:  []string{""},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.buffer, tt.parts); got != tt.want {
				t.Errorf("Matches(%q, %v) = %v, want %v", tt.buffer, tt.parts, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{
			name: "short string unchanged",
			in:   "hello",
			n:    10,
			want: "hello",
		},
		{
			name: "exact length unchanged",
			in:   "hello",
			n:    5,
			want: "hello",
		},
		{
			name: "long string cut with ellipsis",
			in:   "hello world",
			n:    5,
			want: "hello...",
		},
		{
			name: "multibyte rune not split",
			in:   "abécd",
			n:    3,
			want: "ab...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
