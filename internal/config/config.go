package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete entitylock configuration
type Config struct {
	Locker  LockerConfig  `mapstructure:"locker" yaml:"locker"`
	Stress  StressConfig  `mapstructure:"stress" yaml:"stress"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LockerConfig controls the lockers created by the CLI
type LockerConfig struct {
	// Name labels the locker in logs, events, and metrics (default: "default")
	Name string `mapstructure:"name" yaml:"name"`
	// DefaultTimeoutMS bounds timed acquisitions when no timeout is given, such as
	// the timed-wait contender when stress.timeout_ms is 0 (default: 1000)
	DefaultTimeoutMS int `mapstructure:"default_timeout_ms" yaml:"default_timeout_ms"`
}

// StressConfig controls the stress scenarios
type StressConfig struct {
	// Workers is the number of concurrent workers per scenario (default: 64)
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Increments is the number of critical sections each scenario runs (default: 100000)
	Increments int `mapstructure:"increments" yaml:"increments"`
	// HoldMS is how long a holder keeps a lock in the timing scenarios (default: 100)
	HoldMS int `mapstructure:"hold_ms" yaml:"hold_ms"`
	// TimeoutMS is the contender's bound in the timed-wait scenario; must be below HoldMS.
	// Zero falls back to locker.default_timeout_ms (default: 10)
	TimeoutMS int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	// Keys is the number of distinct entities the parallel scenarios spread over (default: 8)
	Keys int `mapstructure:"keys" yaml:"keys"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path; empty means stderr
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Locker: LockerConfig{
			Name:             "default",
			DefaultTimeoutMS: 1000,
		},
		Stress: StressConfig{
			Workers:    64,
			Increments: 100000,
			HoldMS:     100,
			TimeoutMS:  10,
			Keys:       8,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// DefaultTimeout returns the default acquisition timeout as a time.Duration
func (c *LockerConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

// Hold returns the hold time as a time.Duration
func (c *StressConfig) Hold() time.Duration {
	return time.Duration(c.HoldMS) * time.Millisecond
}

// Timeout returns the contender timeout as a time.Duration
func (c *StressConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Locker defaults
	viper.SetDefault("locker.name", defaults.Locker.Name)
	viper.SetDefault("locker.default_timeout_ms", defaults.Locker.DefaultTimeoutMS)

	// Stress defaults
	viper.SetDefault("stress.workers", defaults.Stress.Workers)
	viper.SetDefault("stress.increments", defaults.Stress.Increments)
	viper.SetDefault("stress.hold_ms", defaults.Stress.HoldMS)
	viper.SetDefault("stress.timeout_ms", defaults.Stress.TimeoutMS)
	viper.SetDefault("stress.keys", defaults.Stress.Keys)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "entitylock")
	}
	// Fall back to ~/.config/entitylock
	home, err := os.UserHomeDir()
	if err != nil {
		return ".entitylock"
	}
	return filepath.Join(home, ".config", "entitylock")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
