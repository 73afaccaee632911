package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittolink/pkg/engine"
	"github.com/marmos91/dittolink/pkg/link"
)

// Default values for settings left unspecified.
const (
	DefaultContainer       = "default"
	DefaultStoreName       = "main"
	DefaultMaxValueLength  = 1 << 20
	DefaultMetricsPort     = 9090
	DefaultShutdownTimeout = 5 * time.Second
	DefaultGCInterval      = 24 * time.Hour
	DefaultGCBatchSize     = 1000
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the backends themselves
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyLinksDefaults(&cfg.Links)
	applyEngineDefaults(&cfg.Engine)
	applyGCDefaults(&cfg.GC)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStoreDefaults sets store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultStoreName
	}
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Filled for every backend so a generated file documents them all
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittolink-badger"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = "dittolink/"
	}
}

// applyLinksDefaults sets link layer defaults.
func applyLinksDefaults(cfg *LinksConfig) {
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	for i, s := range cfg.ChecksumScope {
		cfg.ChecksumScope[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if cfg.ChecksumScope == nil {
		cfg.ChecksumScope = []string{"store"}
	}
	if cfg.MaxSoftLinkHops == 0 {
		cfg.MaxSoftLinkHops = link.DefaultMaxSoftLinkHops
	}
	if cfg.MaxValueLength == 0 {
		cfg.MaxValueLength = DefaultMaxValueLength
	}
}

// applyEngineDefaults sets engine defaults.
func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = engine.DefaultWorkers
	}
}

// applyGCDefaults sets garbage collection defaults.
func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultGCInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultGCBatchSize
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
