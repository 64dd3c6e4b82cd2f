// Package config loads the on-disk project configuration for a blade
// build: include search paths, the initial preprocessor define
// environment, waiver files, and per-rule severity overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for a blade build.
type Config struct {
	// TopFile names the file elaboration starts from. The blade CLI takes
	// the top file from its command line and does not read this field.
	TopFile string `json:"topFile,omitempty"`

	// Includes lists search path entries: directories are scanned
	// recursively for #include targets, explicit file paths are added
	// directly.
	Includes []string `json:"includes,omitempty"`

	// Defines is the initial preprocessor define environment: each value
	// is the raw expression text bound to the name before elaboration
	// begins (an integer literal, a string literal, or any expression the
	// preprocessor's language accepts).
	Defines map[string]string `json:"defines,omitempty"`

	// MaxDepth bounds module elaboration depth; 0 means unlimited.
	MaxDepth int `json:"maxDepth,omitempty"`

	// Waivers lists waiver files applied to checker output.
	Waivers []string `json:"waivers,omitempty"`

	// Rules maps a check name to a severity override: "off", "warning",
	// "error". RuleSeverity and RuleEnabled read this map; the checker's
	// RunChecks does not consult it.
	Rules map[string]string `json:"rules,omitempty"`

	// ExcludePatterns is a list of glob patterns; matching files are
	// never opened as #include targets even if reachable via Includes.
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
}

// DefaultConfig returns a build configuration with no includes, no
// defines, and unlimited elaboration depth.
func DefaultConfig() *Config {
	return &Config{
		Includes:        []string{},
		Defines:         map[string]string{},
		Waivers:         []string{},
		Rules:           map[string]string{},
		ExcludePatterns: []string{},
	}
}

// Load finds and loads the project configuration.
// Search order:
//  1. ./blade.json (current working directory)
//  2. ./.blade.json (current working directory)
//  3. <rootPath>/blade.json (if different from cwd)
//  4. <rootPath>/.blade.json (if different from cwd)
//  5. ~/.config/blade/config.json
//
// Returns DefaultConfig if no config file is found.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "blade.json"),
		filepath.Join(cwd, ".blade.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "blade.json"),
				filepath.Join(rootPath, ".blade.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "blade", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Includes == nil {
		c.Includes = []string{}
	}
	if c.Defines == nil {
		c.Defines = map[string]string{}
	}
	if c.Waivers == nil {
		c.Waivers = []string{}
	}
	if c.Rules == nil {
		c.Rules = map[string]string{}
	}
	if c.ExcludePatterns == nil {
		c.ExcludePatterns = []string{}
	}
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// RuleSeverity returns the configured severity for a check, or
// defaultSeverity if the check has no override.
func (c *Config) RuleSeverity(check string, defaultSeverity string) string {
	if severity, ok := c.Rules[check]; ok {
		return severity
	}
	return defaultSeverity
}

// RuleEnabled reports whether check is not disabled ("off") by an
// override.
func (c *Config) RuleEnabled(check string) bool {
	if severity, ok := c.Rules[check]; ok {
		return severity != "off"
	}
	return true
}

// ShouldExclude reports whether path matches one of ExcludePatterns.
func (c *Config) ShouldExclude(path string) bool {
	for _, pattern := range c.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
