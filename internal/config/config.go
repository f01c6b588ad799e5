// Package config loads and persists the opterm configuration. Values come
// from built-in defaults, then the YAML config file, then OPENPROJECT_*
// environment variables, later sources winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const (
	appDirName      = "opterm"
	configFileName  = "config.yaml"
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 25
)

// Config is the resolved application configuration.
type Config struct {
	APIURL   string
	APIKey   string
	Timeout  time.Duration
	PageSize int
	LogLevel string
	LogFile  string

	// Resolved at load time, not persisted.
	Path     string
	CacheDir string
	Offline  bool
}

// fileConfig mirrors Config for YAML decoding; pointers distinguish
// "absent" from zero values so the file only overrides what it sets.
type fileConfig struct {
	APIURL   *string `yaml:"api_url"`
	APIKey   *string `yaml:"api_key"`
	Timeout  *string `yaml:"timeout"`
	PageSize *int    `yaml:"page_size"`
	LogLevel *string `yaml:"log_level"`
	LogFile  *string `yaml:"log_file"`
}

// DefaultPath returns the standard config file location,
// $XDG_CONFIG_HOME/opterm/config.yaml or the platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// DefaultCacheDir returns the snapshot store location.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user cache dir: %w", err)
	}
	return filepath.Join(dir, appDirName), nil
}

// Load builds the configuration. path may be empty to use DefaultPath.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cacheDir, err := DefaultCacheDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Timeout:  defaultTimeout,
		PageSize: defaultPageSize,
		Path:     path,
		CacheDir: cacheDir,
		LogFile:  filepath.Join(cacheDir, "opterm.log"),
	}

	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.mergeEnv()

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- the user picks their own config path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if fc.APIURL != nil {
		c.APIURL = *fc.APIURL
	}
	if fc.APIKey != nil {
		c.APIKey = *fc.APIKey
	}
	if fc.Timeout != nil {
		if d, ok := parseTimeoutValue(*fc.Timeout); ok {
			c.Timeout = d
		} else {
			return fmt.Errorf("config: invalid timeout %q in %s", *fc.Timeout, path)
		}
	}
	if fc.PageSize != nil && *fc.PageSize > 0 {
		c.PageSize = *fc.PageSize
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.APIURL = parseString("OPENPROJECT_API_URL", c.APIURL)
	c.APIKey = parseString("OPENPROJECT_API_KEY", c.APIKey)
	c.Timeout = parseTimeout("OPENPROJECT_TIMEOUT", c.Timeout)
	c.PageSize = parseInt("OPENPROJECT_PAGE_SIZE", c.PageSize)
	c.LogLevel = parseString("OPENPROJECT_LOG_LEVEL", c.LogLevel)
}

// Configured reports whether enough is set to talk to a server.
func (c *Config) Configured() bool {
	return c.APIURL != "" && c.APIKey != ""
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("config: OpenProject API URL not configured")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: OpenProject API key not configured")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("config: invalid API URL format: %q", c.APIURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page size must be positive")
	}
	return nil
}

// Save writes the persistable fields to the config file atomically. The
// file holds the API key, so it is created 0600.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config: no path to save to")
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	persisted := struct {
		APIURL   string `yaml:"api_url"`
		APIKey   string `yaml:"api_key"`
		Timeout  string `yaml:"timeout"`
		PageSize int    `yaml:"page_size"`
		LogLevel string `yaml:"log_level,omitempty"`
	}{
		APIURL:   c.APIURL,
		APIKey:   c.APIKey,
		Timeout:  c.Timeout.String(),
		PageSize: c.PageSize,
		LogLevel: c.LogLevel,
	}
	data, err := yaml.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := renameio.WriteFile(c.Path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.Path, err)
	}
	return nil
}
