package config

import (
	"github.com/dshills/procwait/internal/config/registry"
)

// Errors and error types shared with the registry package, re-exported
// so callers only need to import config.
var (
	// ErrSettingNotFound indicates the setting path doesn't exist.
	ErrSettingNotFound = registry.ErrSettingNotFound

	// ErrTypeMismatch matches any TypeError via errors.Is.
	ErrTypeMismatch = registry.ErrTypeMismatch
)

// TypeError is returned when a value cannot be converted to the
// requested type.
type TypeError = registry.TypeError
