// Package config provides configuration management for pulse.
//
// This package handles loading configuration from multiple sources:
// - Configuration files (YAML, JSON, TOML)
// - Environment variables
// - Command line flags
// - Default values
//
// Configuration is loaded in order of precedence (highest to lowest):
// 1. Command line flags
// 2. Environment variables
// 3. Configuration file
// 4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete pulse configuration
type Config struct {
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
	Flood   FloodConfig   `mapstructure:"flood" yaml:"flood"`
	Sinks   SinksConfig   `mapstructure:"sinks" yaml:"sinks"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ProbeConfig contains heartbeat loop configuration
type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Message  string        `mapstructure:"message" yaml:"message"`
}

// FloodConfig contains flood-test configuration
type FloodConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	PayloadSize string        `mapstructure:"payload_size" yaml:"payload_size"`
	StdoutFill  string        `mapstructure:"stdout_fill" yaml:"stdout_fill"`
	StderrFill  string        `mapstructure:"stderr_fill" yaml:"stderr_fill"`
}

// SinksConfig describes the output destinations of the probe
type SinksConfig struct {
	Stdout         bool   `mapstructure:"stdout" yaml:"stdout"`
	Stderr         bool   `mapstructure:"stderr" yaml:"stderr"`
	File           string `mapstructure:"file" yaml:"file"`
	MemoryCapacity int    `mapstructure:"memory_capacity" yaml:"memory_capacity"`
	WebSocketURL   string `mapstructure:"websocket_url" yaml:"websocket_url"`
}

// LoggingConfig contains diagnostic logging configuration. Diagnostics
// are separate from heartbeat output and default to stderr.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Probe: ProbeConfig{
			Interval: 3 * time.Second,
			Message:  "Hello, World!",
		},
		Flood: FloodConfig{
			Interval:    5 * time.Second,
			PayloadSize: "1MB",
			StdoutFill:  "a",
			StderrFill:  "b",
		},
		Sinks: SinksConfig{
			Stdout:         true,
			Stderr:         false,
			File:           "",
			MemoryCapacity: 0,
			WebSocketURL:   "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			OutputFile: "",
			Verbose:    false,
		},
	}
}

// LoadConfig loads configuration from various sources
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure environment variable handling
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Search for config file in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pulse")
		v.AddConfigPath("/etc/pulse")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// If a specific config file was provided and not found, that's an error
			if configFile != "" {
				return nil, fmt.Errorf("config file not found: %s", configFile)
			}
			// Otherwise, config file not found is okay, we'll use defaults
		} else {
			// Other errors are always reported
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// Probe defaults
	v.SetDefault("probe.interval", defaults.Probe.Interval)
	v.SetDefault("probe.message", defaults.Probe.Message)

	// Flood defaults
	v.SetDefault("flood.interval", defaults.Flood.Interval)
	v.SetDefault("flood.payload_size", defaults.Flood.PayloadSize)
	v.SetDefault("flood.stdout_fill", defaults.Flood.StdoutFill)
	v.SetDefault("flood.stderr_fill", defaults.Flood.StderrFill)

	// Sink defaults
	v.SetDefault("sinks.stdout", defaults.Sinks.Stdout)
	v.SetDefault("sinks.stderr", defaults.Sinks.Stderr)
	v.SetDefault("sinks.file", defaults.Sinks.File)
	v.SetDefault("sinks.memory_capacity", defaults.Sinks.MemoryCapacity)
	v.SetDefault("sinks.websocket_url", defaults.Sinks.WebSocketURL)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output_file", defaults.Logging.OutputFile)
	v.SetDefault("logging.verbose", defaults.Logging.Verbose)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	// Validate probe configuration. A zero interval is allowed and
	// means back-to-back ticks; negative is not.
	if config.Probe.Interval < 0 {
		return fmt.Errorf("probe.interval must be non-negative, got %v", config.Probe.Interval)
	}

	if config.Flood.Interval < 0 {
		return fmt.Errorf("flood.interval must be non-negative, got %v", config.Flood.Interval)
	}

	if err := validateSizeString(config.Flood.PayloadSize, "flood.payload_size"); err != nil {
		return err
	}

	if len(config.Flood.StdoutFill) != 1 {
		return fmt.Errorf("flood.stdout_fill must be a single byte, got %q", config.Flood.StdoutFill)
	}

	if len(config.Flood.StderrFill) != 1 {
		return fmt.Errorf("flood.stderr_fill must be a single byte, got %q", config.Flood.StderrFill)
	}

	// Validate sink configuration
	if config.Sinks.MemoryCapacity < 0 {
		return fmt.Errorf("sinks.memory_capacity must be non-negative, got %d", config.Sinks.MemoryCapacity)
	}

	if config.Sinks.WebSocketURL != "" &&
		!strings.HasPrefix(config.Sinks.WebSocketURL, "ws://") &&
		!strings.HasPrefix(config.Sinks.WebSocketURL, "wss://") {
		return fmt.Errorf("sinks.websocket_url must start with ws:// or wss://, got %s", config.Sinks.WebSocketURL)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %s", config.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[config.Logging.Format] {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %s", config.Logging.Format)
	}

	return nil
}

// validateSizeString validates size strings like "1MB", "64KB"
func validateSizeString(size, field string) error {
	if size == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	// Parse size string
	_, err := ParseSize(size)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}

	return nil
}

// ParseSize parses size strings like "1MB", "64KB" into bytes
func ParseSize(size string) (int64, error) {
	if size == "" {
		return 0, fmt.Errorf("size string cannot be empty")
	}

	// Convert to uppercase for case-insensitive parsing
	size = strings.ToUpper(size)

	// Define size units in order (longest first to avoid conflicts)
	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	// Find the unit
	var multiplier int64 = 1 // Default to bytes
	var valueStr string

	for _, unit := range units {
		if strings.HasSuffix(size, unit.suffix) {
			multiplier = unit.multiplier
			valueStr = strings.TrimSuffix(size, unit.suffix)
			break
		}
	}

	// If no unit found, assume bytes
	if valueStr == "" {
		valueStr = size
		multiplier = 1
	}

	// Parse the numeric value (handle float values by rejecting them)
	var value int64
	var floatValue float64

	// Check if it's a float first
	if n, err := fmt.Sscanf(valueStr, "%f", &floatValue); err == nil && n == 1 {
		// If it parsed as float but is actually an integer, it's okay
		if floatValue == float64(int64(floatValue)) {
			value = int64(floatValue)
		} else {
			return 0, fmt.Errorf("float values not supported in size string: %s", valueStr)
		}
	} else {
		return 0, fmt.Errorf("invalid numeric value in size string: %s", valueStr)
	}

	if value < 0 {
		return 0, fmt.Errorf("size value cannot be negative: %d", value)
	}

	return value * multiplier, nil
}

// GetConfigPaths returns the paths where config files are searched
func GetConfigPaths() []string {
	paths := []string{
		"./config.yaml",
		"./config.yml",
		"./config.json",
		"./config.toml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".pulse", "config.yaml"),
			filepath.Join(home, ".pulse", "config.yml"),
			filepath.Join(home, ".pulse", "config.json"),
			filepath.Join(home, ".pulse", "config.toml"),
		)
	}

	paths = append(paths,
		"/etc/pulse/config.yaml",
		"/etc/pulse/config.yml",
		"/etc/pulse/config.json",
		"/etc/pulse/config.toml",
	)

	return paths
}

// GetEnvVarName returns the environment variable name for a config key
func GetEnvVarName(key string) string {
	return "PULSE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
