// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultGracePeriod is the per-worker wait during unload.
	DefaultGracePeriod = 3 * time.Second
	// DefaultWatchDebounce groups bursts of file events in the modules
	// directory.
	DefaultWatchDebounce = 500 * time.Millisecond
	// DefaultSSHPort is the operator console port.
	DefaultSSHPort = 2222
	// DatastoreFileName is the SQLite file created in the data directory
	// when datastore.path is empty.
	DatastoreFileName = "modhost.db"
)

var (
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidLoadOptions is the sentinel wrapped by InvalidLoadOptionsError.
	ErrInvalidLoadOptions = errors.New("invalid load options")

	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json", "logfmt"}
)

type (
	// Config is the host configuration.
	Config struct {
		ModulesDir      string          `mapstructure:"modules_dir"`
		DataDir         string          `mapstructure:"data_dir"`
		Log             LogConfig       `mapstructure:"log"`
		Unload          UnloadConfig    `mapstructure:"unload"`
		Datastore       DatastoreConfig `mapstructure:"datastore"`
		Watch           WatchConfig     `mapstructure:"watch"`
		Console         ConsoleConfig   `mapstructure:"console"`
		DisabledModules []string        `mapstructure:"disabled_modules"`

		// Source is the file the configuration was read from; empty when
		// only defaults and environment were used.
		Source string `mapstructure:"-"`
	}

	// LogConfig configures the root logger.
	LogConfig struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	// UnloadConfig configures module teardown.
	UnloadConfig struct {
		GracePeriod time.Duration `mapstructure:"grace_period"`
	}

	// DatastoreConfig configures the module data store.
	DatastoreConfig struct {
		Path string `mapstructure:"path"`
	}

	// WatchConfig configures hot discovery of new packages.
	WatchConfig struct {
		Enabled  bool          `mapstructure:"enabled"`
		Debounce time.Duration `mapstructure:"debounce"`
		Ignore   []string      `mapstructure:"ignore"`
	}

	// ConsoleConfig configures the operator consoles.
	ConsoleConfig struct {
		Stdin bool      `mapstructure:"stdin"`
		SSH   SSHConfig `mapstructure:"ssh"`
	}

	// SSHConfig configures the SSH operator console.
	SSHConfig struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		Token   string `mapstructure:"token"`
	}

	// InvalidConfigError lists every invalid field.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidLoadOptionsError lists every invalid load option.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ModulesDir: "modules",
		DataDir:    "data",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Unload: UnloadConfig{GracePeriod: DefaultGracePeriod},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		Console: ConsoleConfig{
			Stdin: true,
			SSH: SSHConfig{
				Host: "127.0.0.1",
				Port: DefaultSSHPort,
			},
		},
	}
}

// DatastorePath returns the SQLite file path.
func (c *Config) DatastorePath() string {
	if c.Datastore.Path != "" {
		return c.Datastore.Path
	}
	return filepath.Join(c.DataDir, DatastoreFileName)
}

// ModuleDataRoot returns the parent of the per-module data directories.
func (c *Config) ModuleDataRoot() string {
	return filepath.Join(c.DataDir, "modules")
}

// Validate checks the values CUE cannot see, such as environment
// overrides.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ModulesDir) == "" {
		errs = append(errs, errors.New("modules_dir must not be empty"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q must be one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format %q must be one of %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}
	if c.Unload.GracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("unload.grace_period must be positive, got %s", c.Unload.GracePeriod))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	if c.Console.SSH.Port < 0 || c.Console.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("console.ssh.port %d is out of range", c.Console.SSH.Port))
	}
	for i, name := range c.DisabledModules {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("disabled_modules[%d] must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidConfig, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidLoadOptions, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidLoadOptions.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
