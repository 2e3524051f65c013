package registry

import (
	"testing"
	"time"
)

func TestSetting_ValidateType(t *testing.T) {
	tests := []struct {
		name    string
		setting Setting
		value   any
		wantErr bool
	}{
		{
			name:    "string valid",
			setting: Setting{Path: "a.b", Type: TypeString},
			value:   "hello",
			wantErr: false,
		},
		{
			name:    "string rejects int",
			setting: Setting{Path: "a.b", Type: TypeString},
			value:   42,
			wantErr: true,
		},
		{
			name:    "int valid",
			setting: Setting{Path: "a.b", Type: TypeInt},
			value:   42,
			wantErr: false,
		},
		{
			name:    "int accepts int64",
			setting: Setting{Path: "a.b", Type: TypeInt},
			value:   int64(42),
			wantErr: false,
		},
		{
			name:    "int rejects string",
			setting: Setting{Path: "a.b", Type: TypeInt},
			value:   "42",
			wantErr: true,
		},
		{
			name:    "int rejects bool",
			setting: Setting{Path: "a.b", Type: TypeInt},
			value:   true,
			wantErr: true,
		},
		{
			name:    "float valid",
			setting: Setting{Path: "a.b", Type: TypeFloat},
			value:   1.5,
			wantErr: false,
		},
		{
			name:    "float accepts int",
			setting: Setting{Path: "a.b", Type: TypeFloat},
			value:   3,
			wantErr: false,
		},
		{
			name:    "bool valid",
			setting: Setting{Path: "a.b", Type: TypeBool},
			value:   true,
			wantErr: false,
		},
		{
			name:    "bool rejects string",
			setting: Setting{Path: "a.b", Type: TypeBool},
			value:   "true",
			wantErr: true,
		},
		{
			name:    "duration accepts time.Duration",
			setting: Setting{Path: "a.b", Type: TypeDuration},
			value:   5 * time.Second,
			wantErr: false,
		},
		{
			name:    "duration accepts string",
			setting: Setting{Path: "a.b", Type: TypeDuration},
			value:   "500ms",
			wantErr: false,
		},
		{
			name:    "duration rejects bool",
			setting: Setting{Path: "a.b", Type: TypeDuration},
			value:   false,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setting.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetting_ValidateRange(t *testing.T) {
	setting := Setting{
		Path:    "wait.pollInterval",
		Type:    TypeInt,
		Minimum: MinValue(1),
		Maximum: MaxValue(1000),
	}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"within range", 10, false},
		{"at minimum", 1, false},
		{"at maximum", 1000, false},
		{"below minimum", 0, true},
		{"above maximum", 1001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := setting.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetting_ValidateEnum(t *testing.T) {
	setting := Setting{
		Path: "logging.level",
		Type: TypeEnum,
		Enum: []any{"debug", "info", "warn", "error"},
	}

	if err := setting.Validate("info"); err != nil {
		t.Errorf("expected 'info' to be valid, got %v", err)
	}
	if err := setting.Validate("verbose"); err == nil {
		t.Error("expected 'verbose' to be rejected")
	}
}

func TestSetting_ValidatePattern(t *testing.T) {
	setting := Setting{
		Path:    "a.b",
		Type:    TypeString,
		Pattern: `^[a-z]+$`,
	}

	if err := setting.Validate("lowercase"); err != nil {
		t.Errorf("expected 'lowercase' to be valid, got %v", err)
	}
	if err := setting.Validate("Not Lowercase"); err == nil {
		t.Error("expected 'Not Lowercase' to be rejected")
	}
}

func TestSettingType_String(t *testing.T) {
	tests := []struct {
		typ  SettingType
		want string
	}{
		{TypeString, "string"},
		{TypeInt, "integer"},
		{TypeFloat, "number"},
		{TypeBool, "boolean"},
		{TypeDuration, "duration"},
		{TypeEnum, "enum"},
		{SettingType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("SettingType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestSettingScope(t *testing.T) {
	if !ScopeAll.HasScope(ScopeFile) {
		t.Error("expected ScopeAll to include ScopeFile")
	}
	if !ScopeAll.HasScope(ScopeEnv) {
		t.Error("expected ScopeAll to include ScopeEnv")
	}
	if ScopeFile.HasScope(ScopeEnv) {
		t.Error("expected ScopeFile to exclude ScopeEnv")
	}

	tests := []struct {
		scope SettingScope
		want  string
	}{
		{ScopeAll, "all"},
		{ScopeFile, "file"},
		{ScopeEnv, "env"},
		{SettingScope(0), "none"},
	}

	for _, tt := range tests {
		if got := tt.scope.String(); got != tt.want {
			t.Errorf("Scope.String() = %q, want %q", got, tt.want)
		}
	}
}
