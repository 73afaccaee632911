package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittolink/internal/ratelimiter"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete DittoLink configuration.
//
// The configuration is organized into sections:
//   - Logging: Log level, format and output
//   - Store: Object store backend holding the container
//   - Links: Link layer behavior (checksum scope, soft link hops, value sizes)
//   - Engine: Concurrency of batch task execution
//   - RateLimit: Request admission control
//   - GC: Orphaned object collection
//   - Metrics: Prometheus metrics endpoint
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOLINK_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Store selects and configures the object store backend
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Links configures the link layer
	Links LinksConfig `mapstructure:"links" yaml:"links"`

	// Engine configures the batch task engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// RateLimit configures request admission control
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// GC configures orphaned object collection
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StoreConfig specifies the object store backend.
//
// Only the map matching Type is decoded; the others may stay populated so
// that switching backends is a one-line change.
type StoreConfig struct {
	// Name is the registry name of the store
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Type specifies which backend to use
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3" yaml:"type"`

	// Badger contains BadgerDB-specific configuration
	// Decoded into badger.Config
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// S3 contains S3-specific configuration
	// Decoded into the S3 factory options
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// LinksConfig configures the link layer of the served container.
type LinksConfig struct {
	// Container is the name requests use to address the container
	Container string `mapstructure:"container" validate:"required" yaml:"container"`

	// ReadOnly rejects every mutating procedure on the container
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// ChecksumScope lists where scratch-pad checksums are verified
	// Valid values: transfer, store, memory
	ChecksumScope []string `mapstructure:"checksum_scope" validate:"dive,oneof=transfer store memory" yaml:"checksum_scope"`

	// MaxSoftLinkHops bounds soft links followed while resolving one path
	MaxSoftLinkHops int `mapstructure:"max_soft_link_hops" validate:"gte=1,lte=1024" yaml:"max_soft_link_hops"`

	// MaxValueLength is the largest value buffer a GETVALUE may request
	MaxValueLength uint64 `mapstructure:"max_value_length" validate:"gt=0" yaml:"max_value_length"`
}

// Checksum returns the parsed checksum scope.
func (c *LinksConfig) Checksum() (link.ChecksumScope, error) {
	return link.ParseChecksumScope(c.ChecksumScope)
}

// EngineConfig configures the batch task engine.
type EngineConfig struct {
	// Workers bounds how many tasks run at once
	Workers int `mapstructure:"workers" validate:"gte=1" yaml:"workers"`
}

// RateLimitConfig configures request admission.
type RateLimitConfig struct {
	// Global applies to every request
	Global ratelimiter.Limit `mapstructure:"global" yaml:"global"`

	// Procedures adds per-procedure limits keyed by procedure name
	// (e.g. ITERATE)
	Procedures map[string]ratelimiter.Limit `mapstructure:"procedures" yaml:"procedures,omitempty"`
}

// GCConfig configures collection of objects no hard link reaches.
type GCConfig struct {
	// Enabled runs the collector in the background of long-running commands
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the time between background collections
	Interval time.Duration `mapstructure:"interval" validate:"gte=0" yaml:"interval"`

	// BatchSize is how many orphans are unlinked between cancellation checks
	BatchSize int `mapstructure:"batch_size" validate:"gte=1" yaml:"batch_size"`

	// DryRun reports orphans without unlinking them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown of the endpoint
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Load loads configuration from file, environment variables, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOLINK_ prefix and underscores
	// Example: DITTOLINK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittolink/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar settings that may be set from the environment
// without appearing in the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"store.name",
	"store.type",
	"links.container",
	"links.read_only",
	"links.max_soft_link_hops",
	"links.max_value_length",
	"engine.workers",
	"rate_limit.global.requests_per_second",
	"rate_limit.global.burst",
	"gc.enabled",
	"gc.interval",
	"gc.batch_size",
	"gc.dry_run",
	"metrics.enabled",
	"metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittolink")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittolink")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// S3 credentials may live in the file
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const configHeader = `# DittoLink Configuration File
#
# Every setting can be overridden with an environment variable:
#   DITTOLINK_<SECTION>_<KEY>, e.g. DITTOLINK_LOGGING_LEVEL=DEBUG
#
`

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	return SaveConfig(GetDefaultConfig(), path)
}
