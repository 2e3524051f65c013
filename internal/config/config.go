package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/procwait/internal/config/loader"
	"github.com/dshills/procwait/internal/config/registry"
	"github.com/dshills/procwait/internal/logging"
	"github.com/dshills/procwait/internal/process"
	"github.com/dshills/procwait/internal/waitfor"
)

// Config provides unified access to the procwait configuration.
// Values are assembled from registry defaults, the TOML config file,
// and PROCWAIT_-prefixed environment variables, in that order of
// precedence (later sources win).
type Config struct {
	mu sync.RWMutex

	// registry holds the setting definitions used for validation and defaults.
	registry *registry.Registry

	// accessor provides typed reads over the merged values.
	accessor *registry.Accessor

	// merged holds the file and environment values after Load.
	merged map[string]any

	// path is the config file path ("" means the default location).
	path string

	// fs abstracts file access for tests.
	fs loader.FileSystem

	// logger reports ignored values and load progress.
	logger *logging.Logger
}

// Option configures a Config instance.
type Option func(*Config)

// WithPath sets the config file path.
func WithPath(path string) Option {
	return func(c *Config) {
		c.path = path
	}
}

// WithRegistry sets the settings registry.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Config) {
		c.registry = r
	}
}

// WithFileSystem sets the file system used to read the config file.
func WithFileSystem(fs loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// New creates a new Config instance with the given options.
// Call Load before reading values; until then every getter reports
// the registry defaults.
func New(opts ...Option) *Config {
	c := &Config{
		registry: registry.Global(),
		fs:       loader.DefaultFS(),
		logger:   logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.WithComponent("config")
	c.accessor = registry.NewAccessor(c.registry, registry.NewMapValueStore(nil))

	return c
}

// Load reads the config file and environment variables, validates every
// recognized value, and makes the merged result available to the getters.
func (c *Config) Load() error {
	path := c.path
	if path == "" {
		path = DefaultPath()
	}

	fileVals, err := loader.NewTOMLLoaderWithFS(c.fs, path).Load()
	if err != nil {
		return err
	}
	if fileVals != nil {
		if err := c.validateLayer(fileVals, registry.ScopeFile, path); err != nil {
			return err
		}
		c.logger.Debug("loaded config file %s", path)
	}

	envVals, err := loader.NewEnvLoader(loader.EnvPrefix).Load()
	if err != nil {
		return err
	}
	if len(envVals) > 0 {
		if err := c.validateLayer(envVals, registry.ScopeEnv, "environment"); err != nil {
			return err
		}
	}

	merged := loader.DeepMerge(loader.Clone(fileVals), envVals)

	c.mu.Lock()
	c.merged = merged
	c.accessor = registry.NewAccessor(c.registry, registry.NewMapValueStore(merged))
	c.mu.Unlock()

	return nil
}

// validateLayer checks every registered setting present in vals against
// its definition and scope. Unregistered paths are ignored so config
// files stay forward compatible.
func (c *Config) validateLayer(vals map[string]any, scope registry.SettingScope, source string) error {
	store := registry.NewMapValueStore(vals)
	for _, s := range c.registry.All() {
		v, ok := store.GetValue(s.Path)
		if !ok {
			continue
		}
		if !s.Scope.HasScope(scope) {
			return fmt.Errorf("setting %s may not be set from %s", s.Path, source)
		}
		if err := s.Validate(v); err != nil {
			return fmt.Errorf("invalid value for %s in %s: %w", s.Path, source, err)
		}
	}
	return nil
}

// Get returns the raw value at the given path, falling back to the
// registry default when the path is not explicitly set.
func (c *Config) Get(path string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessor.Get(path)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessor.GetString(path)
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessor.GetInt(path)
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessor.GetBool(path)
}

// GetDuration returns a duration value at the given path.
// Integer values are interpreted as milliseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessor.GetDuration(path)
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() logging.Level {
	s, err := c.GetString("logging.level")
	if err != nil {
		return logging.LevelInfo
	}
	return logging.ParseLevel(s)
}

// ShutdownTimeout returns the graceful termination timeout for
// supervised processes.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := c.GetDuration("process.shutdownTimeout")
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// WaitOptions converts the wait settings into waitfor options.
func (c *Config) WaitOptions() []waitfor.Option {
	opts := make([]waitfor.Option, 0, 5)

	if d, err := c.GetDuration("wait.readTimeout"); err == nil {
		opts = append(opts, waitfor.WithReadTimeout(d))
	}
	if d, err := c.GetDuration("wait.pollInterval"); err == nil {
		opts = append(opts, waitfor.WithPollInterval(d))
	}
	if d, err := c.GetDuration("wait.gracePeriod"); err == nil {
		opts = append(opts, waitfor.WithGracePeriod(d))
	}
	if n, err := c.GetInt("wait.bufferSize"); err == nil {
		opts = append(opts, waitfor.WithBufferSize(n))
	}
	if n, err := c.GetInt("wait.excerptLength"); err == nil {
		opts = append(opts, waitfor.WithExcerptLength(n))
	}

	return opts
}

// SupervisorOptions converts the process settings into supervisor options.
func (c *Config) SupervisorOptions() []process.SupervisorOption {
	var opts []process.SupervisorOption

	if n, err := c.GetInt("process.maxProcesses"); err == nil && n > 0 {
		opts = append(opts, process.WithMaxProcesses(n))
	}
	if n, err := c.GetInt("process.stderrBufferLines"); err == nil {
		opts = append(opts, process.WithStderrBufferLines(n))
	}

	return opts
}

// Path returns the config file path that Load reads.
func (c *Config) Path() string {
	if c.path != "" {
		return c.path
	}
	return DefaultPath()
}

// DefaultPath returns the default config file location,
// $XDG_CONFIG_HOME/procwait/config.toml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "procwait", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "procwait", "config.toml")
}
