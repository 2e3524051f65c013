package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maintains all known settings definitions and provides
// type-safe access to setting values.
type Registry struct {
	mu       sync.RWMutex
	settings map[string]*Setting
	sections map[string][]*Setting // Settings grouped by section
}

// New creates a new settings registry.
func New() *Registry {
	return &Registry{
		settings: make(map[string]*Setting),
		sections: make(map[string][]*Setting),
	}
}

// NewWithDefaults creates a registry with the built-in procwait settings.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry of built-in settings.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewWithDefaults()
	})
	return global
}

// Register adds a setting definition to the registry.
// Returns an error if a setting with the same path already exists.
func (r *Registry) Register(setting Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[setting.Path]; exists {
		return fmt.Errorf("%w: %s", ErrSettingAlreadyRegistered, setting.Path)
	}

	s := &setting // Copy to heap
	r.settings[setting.Path] = s

	section := extractSection(setting.Path)
	r.sections[section] = append(r.sections[section], s)

	return nil
}

// MustRegister registers a setting and panics on error.
// Useful for registering built-in settings at init time.
func (r *Registry) MustRegister(setting Setting) {
	if err := r.Register(setting); err != nil {
		panic(err)
	}
}

// Get returns the setting definition for the given path.
// Returns nil if the setting is not registered.
func (r *Registry) Get(path string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[path]
}

// Has checks if a setting is registered.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.settings[path]
	return exists
}

// All returns all registered settings sorted by path.
func (r *Registry) All() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Setting, 0, len(r.settings))
	for _, s := range r.settings {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	return result
}

// Section returns all settings in a given section (e.g., "wait").
func (r *Registry) Section(name string) []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings := r.sections[name]
	result := make([]*Setting, len(settings))
	copy(result, settings)
	return result
}

// Sections returns all section names sorted alphabetically.
func (r *Registry) Sections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.sections))
	for section := range r.sections {
		result = append(result, section)
	}
	sort.Strings(result)
	return result
}

// Default returns the default value for a setting.
// Returns nil if the setting is not registered.
func (r *Registry) Default(path string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.settings[path]; ok {
		return s.Default
	}
	return nil
}

// Defaults returns a map of all default values keyed by path.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.settings))
	for path, s := range r.settings {
		if s.Default != nil {
			result[path] = s.Default
		}
	}
	return result
}

// Validate checks if a value is valid for a setting.
// Unknown settings are allowed so config files stay forward compatible.
func (r *Registry) Validate(path string, value any) error {
	r.mu.RLock()
	s, ok := r.settings[path]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	return s.Validate(value)
}

// extractSection extracts the top-level section from a path.
func extractSection(path string) string {
	parts := strings.SplitN(path, ".", 2)
	return parts[0]
}

// ErrSettingAlreadyRegistered is returned when attempting to register a duplicate setting.
var ErrSettingAlreadyRegistered = fmt.Errorf("setting already registered")

// RegisterDefaults registers all built-in procwait settings.
func (r *Registry) RegisterDefaults() {
	// Wait loop settings
	r.MustRegister(Setting{
		Path:        "wait.readTimeout",
		Type:        TypeInt,
		Default:     100,
		Description: "Per-iteration stdout read timeout in milliseconds",
		Scope:       ScopeAll,
		Minimum:     MinValue(10),
		Maximum:     MaxValue(5000),
		Tags:        []string{"wait", "timing"},
	})

	r.MustRegister(Setting{
		Path:        "wait.pollInterval",
		Type:        TypeInt,
		Default:     10,
		Description: "Sleep between wait loop iterations in milliseconds",
		Scope:       ScopeAll,
		Minimum:     MinValue(1),
		Maximum:     MaxValue(1000),
		Tags:        []string{"wait", "timing"},
	})

	r.MustRegister(Setting{
		Path:        "wait.gracePeriod",
		Type:        TypeInt,
		Default:     100,
		Description: "Grace period after a clean exit before the final output check, in milliseconds",
		Scope:       ScopeAll,
		Minimum:     MinValue(0),
		Maximum:     MaxValue(5000),
		Tags:        []string{"wait", "timing"},
	})

	r.MustRegister(Setting{
		Path:        "wait.bufferSize",
		Type:        TypeInt,
		Default:     4096,
		Description: "Initial capacity of the accumulated output buffer in bytes",
		Scope:       ScopeAll,
		Minimum:     MinValue(256),
		Tags:        []string{"wait", "memory"},
	})

	r.MustRegister(Setting{
		Path:        "wait.excerptLength",
		Type:        TypeInt,
		Default:     200,
		Description: "Maximum length of output excerpts included in error messages",
		Scope:       ScopeAll,
		Minimum:     MinValue(40),
		Maximum:     MaxValue(2000),
		Tags:        []string{"wait", "errors"},
	})

	// Process supervision settings
	r.MustRegister(Setting{
		Path:        "process.shutdownTimeout",
		Type:        TypeInt,
		Default:     5000,
		Description: "Time to wait for graceful termination before SIGKILL, in milliseconds",
		Scope:       ScopeAll,
		Minimum:     MinValue(0),
		Tags:        []string{"process", "timing"},
	})

	r.MustRegister(Setting{
		Path:        "process.stderrBufferLines",
		Type:        TypeInt,
		Default:     200,
		Description: "Number of recent stderr lines retained per process",
		Scope:       ScopeAll,
		Minimum:     MinValue(0),
		Tags:        []string{"process", "memory"},
	})

	r.MustRegister(Setting{
		Path:        "process.maxProcesses",
		Type:        TypeInt,
		Default:     0,
		Description: "Maximum concurrent supervised processes (0 = unlimited)",
		Scope:       ScopeAll,
		Minimum:     MinValue(0),
		Tags:        []string{"process", "limits"},
	})

	// Logging settings
	r.MustRegister(Setting{
		Path:        "logging.level",
		Type:        TypeEnum,
		Default:     "info",
		Description: "Logging verbosity level",
		Scope:       ScopeAll,
		Enum:        []any{"debug", "info", "warn", "error"},
		Tags:        []string{"logging"},
	})

	// Check suite settings
	r.MustRegister(Setting{
		Path:        "checks.failFast",
		Type:        TypeBool,
		Default:     true,
		Description: "Stop a check suite at the first failing check",
		Scope:       ScopeAll,
		Tags:        []string{"checks"},
	})
}
