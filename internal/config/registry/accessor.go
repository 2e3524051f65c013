package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Accessor provides type-safe access to configuration values.
// It wraps a value store (typically a map) and falls back to the
// registry defaults for settings that are not explicitly set.
type Accessor struct {
	registry *Registry
	values   ValueStore
}

// ValueStore is the interface for accessing raw configuration values.
type ValueStore interface {
	// GetValue returns the value at the given path.
	// Returns nil, false if the path doesn't exist.
	GetValue(path string) (any, bool)
}

// MapValueStore wraps a nested map as a ValueStore.
type MapValueStore struct {
	data map[string]any
}

// NewMapValueStore creates a ValueStore from a nested map.
func NewMapValueStore(data map[string]any) *MapValueStore {
	return &MapValueStore{data: data}
}

// GetValue returns the value at the given dot-separated path.
func (s *MapValueStore) GetValue(path string) (any, bool) {
	return getByPath(s.data, path)
}

// NewAccessor creates a new type-safe accessor.
func NewAccessor(registry *Registry, values ValueStore) *Accessor {
	return &Accessor{
		registry: registry,
		values:   values,
	}
}

// Get returns the raw value at the given path.
// If the value is not set, returns the default from the registry.
// Returns ErrSettingNotFound if the setting is not registered either.
func (a *Accessor) Get(path string) (any, error) {
	if val, ok := a.values.GetValue(path); ok {
		return val, nil
	}

	setting := a.registry.Get(path)
	if setting == nil {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
	}

	return setting.Default, nil
}

// GetString returns a string value at the given path.
func (a *Accessor) GetString(path string) (string, error) {
	val, err := a.Get(path)
	if err != nil {
		return "", err
	}

	if val == nil {
		return "", nil
	}

	s, ok := val.(string)
	if !ok {
		return "", &TypeError{
			Path:     path,
			Expected: "string",
			Actual:   fmt.Sprintf("%T", val),
		}
	}

	return s, nil
}

// GetInt returns an integer value at the given path.
func (a *Accessor) GetInt(path string) (int, error) {
	val, err := a.Get(path)
	if err != nil {
		return 0, err
	}

	if val == nil {
		return 0, nil
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, &TypeError{
			Path:     path,
			Expected: "integer",
			Actual:   fmt.Sprintf("%T", val),
		}
	}
}

// GetBool returns a boolean value at the given path.
func (a *Accessor) GetBool(path string) (bool, error) {
	val, err := a.Get(path)
	if err != nil {
		return false, err
	}

	if val == nil {
		return false, nil
	}

	b, ok := val.(bool)
	if !ok {
		return false, &TypeError{
			Path:     path,
			Expected: "boolean",
			Actual:   fmt.Sprintf("%T", val),
		}
	}

	return b, nil
}

// GetDuration returns a time.Duration value at the given path.
// Accepts both duration strings (e.g., "500ms") and integers (milliseconds).
func (a *Accessor) GetDuration(path string) (time.Duration, error) {
	val, err := a.Get(path)
	if err != nil {
		return 0, err
	}

	if val == nil {
		return 0, nil
	}

	switch v := val.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string at %s: %w", path, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v) * time.Millisecond, nil
	default:
		return 0, &TypeError{
			Path:     path,
			Expected: "duration",
			Actual:   fmt.Sprintf("%T", val),
		}
	}
}

// TypeError is returned when a type conversion fails.
type TypeError struct {
	// Path is the setting path.
	Path string
	// Expected is the expected type name.
	Expected string
	// Actual is the actual type name.
	Actual string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Errors returned by accessor operations.
var (
	// ErrSettingNotFound is returned when a setting is neither set nor registered.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrTypeMismatch matches any TypeError via errors.Is.
	ErrTypeMismatch = errors.New("type mismatch")
)

// getByPath navigates a nested map using a dot-separated path.
func getByPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}

	parts := strings.Split(path, ".")
	current := any(data)

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		val, exists := m[part]
		if !exists {
			return nil, false
		}

		current = val
	}

	return current, true
}
