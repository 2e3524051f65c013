package registry

import (
	"errors"
	"testing"
	"time"
)

func testAccessor(t *testing.T, values map[string]any) *Accessor {
	t.Helper()
	return NewAccessor(NewWithDefaults(), NewMapValueStore(values))
}

func TestAccessor_GetFallsBackToDefault(t *testing.T) {
	a := testAccessor(t, nil)

	v, err := a.Get("wait.readTimeout")
	if err != nil {
		t.Fatalf("failed to get setting: %v", err)
	}
	if v != 100 {
		t.Errorf("expected default 100, got %v", v)
	}
}

func TestAccessor_GetExplicitValue(t *testing.T) {
	a := testAccessor(t, map[string]any{
		"wait": map[string]any{"readTimeout": int64(250)},
	})

	v, err := a.Get("wait.readTimeout")
	if err != nil {
		t.Fatalf("failed to get setting: %v", err)
	}
	if v != int64(250) {
		t.Errorf("expected 250, got %v", v)
	}
}

func TestAccessor_GetUnregistered(t *testing.T) {
	a := testAccessor(t, nil)

	_, err := a.Get("no.such.setting")
	if !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("expected ErrSettingNotFound, got %v", err)
	}
}

func TestAccessor_GetString(t *testing.T) {
	a := testAccessor(t, map[string]any{
		"logging": map[string]any{"level": "debug"},
	})

	s, err := a.GetString("logging.level")
	if err != nil {
		t.Fatalf("failed to get string: %v", err)
	}
	if s != "debug" {
		t.Errorf("expected 'debug', got %q", s)
	}

	_, err = a.GetString("wait.readTimeout")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestAccessor_GetInt(t *testing.T) {
	a := testAccessor(t, map[string]any{
		"wait": map[string]any{"bufferSize": int64(8192)},
	})

	n, err := a.GetInt("wait.bufferSize")
	if err != nil {
		t.Fatalf("failed to get int: %v", err)
	}
	if n != 8192 {
		t.Errorf("expected 8192, got %d", n)
	}

	_, err = a.GetInt("logging.level")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestAccessor_GetBool(t *testing.T) {
	a := testAccessor(t, map[string]any{
		"checks": map[string]any{"failFast": false},
	})

	b, err := a.GetBool("checks.failFast")
	if err != nil {
		t.Fatalf("failed to get bool: %v", err)
	}
	if b {
		t.Error("expected false")
	}
}

func TestAccessor_GetDuration(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		path   string
		want   time.Duration
	}{
		{
			name: "int milliseconds",
			values: map[string]any{
				"wait": map[string]any{"readTimeout": 250},
			},
			path: "wait.readTimeout",
			want: 250 * time.Millisecond,
		},
		{
			name: "int64 milliseconds",
			values: map[string]any{
				"wait": map[string]any{"readTimeout": int64(50)},
			},
			path: "wait.readTimeout",
			want: 50 * time.Millisecond,
		},
		{
			name: "duration string",
			values: map[string]any{
				"wait": map[string]any{"readTimeout": "2s"},
			},
			path: "wait.readTimeout",
			want: 2 * time.Second,
		},
		{
			name:   "default fallback",
			values: nil,
			path:   "wait.gracePeriod",
			want:   100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAccessor(t, tt.values)
			d, err := a.GetDuration(tt.path)
			if err != nil {
				t.Fatalf("failed to get duration: %v", err)
			}
			if d != tt.want {
				t.Errorf("expected %v, got %v", tt.want, d)
			}
		})
	}
}

func TestAccessor_GetDurationInvalidString(t *testing.T) {
	a := testAccessor(t, map[string]any{
		"wait": map[string]any{"readTimeout": "not-a-duration"},
	})

	_, err := a.GetDuration("wait.readTimeout")
	if err == nil {
		t.Error("expected error for invalid duration string")
	}
}

func TestMapValueStore(t *testing.T) {
	store := NewMapValueStore(map[string]any{
		"wait": map[string]any{
			"readTimeout": 100,
		},
	})

	if v, ok := store.GetValue("wait.readTimeout"); !ok || v != 100 {
		t.Errorf("expected (100, true), got (%v, %v)", v, ok)
	}
	if _, ok := store.GetValue("wait.missing"); ok {
		t.Error("expected missing leaf to report false")
	}
	if _, ok := store.GetValue("wait.readTimeout.deeper"); ok {
		t.Error("expected path through scalar to report false")
	}
	if _, ok := NewMapValueStore(nil).GetValue("wait.readTimeout"); ok {
		t.Error("expected nil store to report false")
	}
}

func TestTypeError_Message(t *testing.T) {
	err := &TypeError{Path: "wait.bufferSize", Expected: "integer", Actual: "string"}
	want := "type error at wait.bufferSize: expected integer, got string"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
