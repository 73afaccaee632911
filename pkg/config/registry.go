package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/metrics"
	"github.com/marmos91/dittolink/pkg/registry"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates the object store described by cfg.Store
//  2. Registers it under cfg.Store.Name
//  3. Adds the container named by cfg.Links.Container, creating its root
//     group on first use
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Complete configuration loaded from config file
//   - m: Store metrics (nil = no metrics)
//
// Returns:
//   - *registry.Registry: Fully initialized registry
//   - *object.Store: The created store; the caller must Close it
//   - error: If store creation or container setup fails
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, store, err := config.InitializeRegistry(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer store.Close()
func InitializeRegistry(ctx context.Context, cfg *Config, m metrics.StoreMetrics) (*registry.Registry, *object.Store, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration is nil")
	}

	logger.Debug("Initializing registry from configuration")

	store, err := CreateStore(ctx, &cfg.Store, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store %q: %w", cfg.Store.Name, err)
	}

	reg := registry.NewRegistry()

	if err := reg.RegisterStore(cfg.Store.Name, store); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	err = reg.AddContainer(ctx, &registry.ContainerConfig{
		Name:            cfg.Links.Container,
		Store:           cfg.Store.Name,
		ReadOnly:        cfg.Links.ReadOnly,
		MaxSoftLinkHops: cfg.Links.MaxSoftLinkHops,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to add container %q: %w", cfg.Links.Container, err)
	}

	logger.Debug("Registered container %q on store %q (%s)", cfg.Links.Container, cfg.Store.Name, cfg.Store.Type)
	return reg, store, nil
}
