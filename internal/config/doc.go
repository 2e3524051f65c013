// Package config provides the configuration system for procwait.
//
// The config package loads, merges, and validates all procwait settings
// from the config file and environment variables.
//
// # Precedence
//
// Configuration is assembled from three sources with later sources
// overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← PROCWAIT_WAIT_READ_TIMEOUT=250
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/procwait/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Environment variable names map mechanically onto setting paths:
// PROCWAIT_WAIT_READ_TIMEOUT becomes wait.readTimeout. PROCWAIT_LOG_LEVEL
// is a shorthand for logging.level.
//
// # Sub-packages
//
//   - loader: TOML file and environment variable loading
//   - registry: Settings definitions with validation and typed accessors
//
// # Basic Usage
//
// Load configuration from the default path:
//
//	cfg := config.New()
//	if err := cfg.Load(); err != nil {
//	    log.Fatal(err)
//	}
//
//	readTimeout, err := cfg.GetDuration("wait.readTimeout")
//	failFast, err := cfg.GetBool("checks.failFast")
//
// Settings that are not explicitly set resolve to their registered
// defaults, so getters succeed for every known path even without a
// config file.
//
// # Configuration File
//
// procwait uses TOML as its configuration format:
//
//	# ~/.config/procwait/config.toml
//	[wait]
//	readTimeout = 250
//	pollInterval = 20
//
//	[process]
//	shutdownTimeout = 10000
//
//	[logging]
//	level = "debug"
//
// Durations are plain integers in milliseconds. Unknown settings are
// ignored; known settings with invalid values fail Load with an error
// naming the setting and its source.
//
// # Error Handling
//
// The package defines these error values:
//
//   - ErrSettingNotFound: setting path is neither set nor registered
//   - ErrTypeMismatch: value type doesn't match the requested type
package config

//go:generate go run ../../cmd/gendocs
