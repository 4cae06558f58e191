package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultTaskClass is the fetch behavior used when the config does not
// name one.
const DefaultTaskClass = "default"

// Fix is an ordered [from, to] substitution applied to every URL
// before any other processing.
type Fix [2]string

// From returns the substring being replaced.
func (f Fix) From() string { return f[0] }

// To returns the replacement.
func (f Fix) To() string { return f[1] }

// Config defines a mirror job. The on-disk format is JSON; the schema
// is shared with external tooling and must not grow incompatible
// fields.
type Config struct {
	// Name is the job namespace. It names the directory holding cached
	// search results and completion logs.
	Name string `json:"name"`

	// Query holds opaque parameters handed to the catalog search.
	Query map[string]string `json:"query"`

	// HostsToPaths maps a URL host to the relative path root its assets
	// are mirrored under. Coverage must be total: extraction fails on
	// any non-ignored host missing from this map.
	HostsToPaths map[string]string `json:"hosts_to_paths"`

	// TaskClass selects an alternate per-URL fetch behavior from the
	// registry. Empty means "default".
	TaskClass string `json:"task_class"`

	// Ignore lists substrings; a URL containing any of them is skipped
	// at extraction, and a response redirected to a matching URL is
	// treated as an out-of-scope redirect.
	Ignore []string `json:"ignore"`

	// Fixes are applied to every URL, in order, before ignore matching
	// and host mapping.
	Fixes []Fix `json:"fixes"`
}

// Load reads and validates a job config from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.TaskClass == "" {
		cfg.TaskClass = DefaultTaskClass
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for structural problems. It does not
// verify host-mapping coverage; that depends on the metadata and is
// enforced during extraction.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("config: name is required")
	}
	if strings.ContainsAny(c.Name, "/\\") {
		return fmt.Errorf("config: name %q must not contain path separators", c.Name)
	}
	for i, fix := range c.Fixes {
		if fix.From() == "" {
			return fmt.Errorf("config: fixes[%d] has an empty from pattern", i)
		}
	}
	for host, root := range c.HostsToPaths {
		if strings.TrimSpace(host) == "" {
			return errors.New("config: hosts_to_paths contains an empty host")
		}
		if strings.HasPrefix(root, "/") {
			return fmt.Errorf("config: hosts_to_paths[%q] must be a relative path", host)
		}
	}
	return nil
}

// ApplyFixes runs every configured substitution against url, in order.
func (c *Config) ApplyFixes(url string) string {
	for _, fix := range c.Fixes {
		url = strings.ReplaceAll(url, fix.From(), fix.To())
	}
	return url
}

// Ignored reports whether url contains any configured ignore
// substring.
func (c *Config) Ignored(url string) bool {
	for _, s := range c.Ignore {
		if s != "" && strings.Contains(url, s) {
			return true
		}
	}
	return false
}
