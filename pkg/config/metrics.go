package config

import (
	"github.com/marmos91/dittolink/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Registry holds every collector (nil if disabled)
	Registry *metrics.Registry

	// LinkMetrics is the collector for link procedures (never nil, uses noop if disabled)
	LinkMetrics metrics.LinkMetrics

	// StoreMetrics observes object store backends (nil if disabled)
	StoreMetrics metrics.StoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Creates a Prometheus registry with the link and store collectors
//   - Creates the metrics HTTP server serving that registry
//
// If metrics are disabled:
//   - Returns nil server and store metrics
//   - Returns no-op link metrics (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	var reg *metrics.Registry
	var server *metrics.Server
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		server = metrics.NewServer(metrics.ServerConfig{
			Port:            cfg.Metrics.Port,
			ShutdownTimeout: cfg.Metrics.ShutdownTimeout,
			Registry:        reg,
		})
	}

	return &MetricsResult{
		Server:       server,
		Registry:     reg,
		LinkMetrics:  reg.Link(),
		StoreMetrics: reg.Store(),
	}
}
