package checks

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds checks that do not declare their own timeout.
const DefaultTimeout = 30 * time.Second

// Suite is a declarative list of readiness checks loaded from YAML.
type Suite struct {
	// Version is the suite format version.
	Version string `yaml:"version"`

	// Checks are executed in order.
	Checks []Check `yaml:"checks"`
}

// Check describes a single readiness check. A check either starts a
// command and waits for its output, or waits for a path to exist.
type Check struct {
	// Name identifies the check in logs and results.
	Name string `yaml:"name"`

	// Command starts a process whose stdout is matched against Parts.
	Command string `yaml:"command"`

	// Args are passed to Command.
	Args []string `yaml:"args"`

	// Parts are the substrings that must all appear in the output.
	Parts []string `yaml:"parts"`

	// Port, when non-zero, additionally waits for the TCP port to
	// accept connections after the output matched.
	Port int `yaml:"port"`

	// Host is the host Port is checked against (default 127.0.0.1).
	Host string `yaml:"host"`

	// Path waits for a file or directory to exist instead of
	// running a command.
	Path string `yaml:"path"`

	// Timeout bounds the whole check (default 30s).
	Timeout Duration `yaml:"timeout"`
}

// timeout returns the effective timeout for the check.
func (c *Check) timeout() time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout)
	}
	return DefaultTimeout
}

// host returns the effective host for the port wait.
func (c *Check) host() string {
	if c.Host != "" {
		return c.Host
	}
	return "127.0.0.1"
}

// Duration decodes YAML duration strings such as "10s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Load reads and validates a check suite from a YAML file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading check suite %s: %w", path, err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing check suite %s: %w", path, err)
	}

	if err := suite.validate(); err != nil {
		return nil, fmt.Errorf("check suite %s: %w", path, err)
	}

	return &suite, nil
}

// validate checks structural constraints on the suite.
func (s *Suite) validate() error {
	if len(s.Checks) == 0 {
		return ErrNoChecks
	}

	seen := make(map[string]bool, len(s.Checks))
	for i := range s.Checks {
		c := &s.Checks[i]

		if c.Name == "" {
			return fmt.Errorf("check %d: name is required", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("check %q: duplicate name", c.Name)
		}
		seen[c.Name] = true

		hasCommand := c.Command != ""
		hasPath := c.Path != ""
		if hasCommand == hasPath {
			return fmt.Errorf("check %q: exactly one of command or path is required", c.Name)
		}
		if !hasCommand {
			if len(c.Args) > 0 {
				return fmt.Errorf("check %q: args require a command", c.Name)
			}
			if len(c.Parts) > 0 {
				return fmt.Errorf("check %q: parts require a command", c.Name)
			}
			if c.Port != 0 {
				return fmt.Errorf("check %q: port requires a command", c.Name)
			}
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("check %q: port %d out of range", c.Name, c.Port)
		}
	}

	return nil
}

// ErrNoChecks is returned when a suite defines no checks.
var ErrNoChecks = errors.New("check suite has no checks")
