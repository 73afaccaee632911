package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Registry manages all named resources: object stores and containers.
// It provides thread-safe registration and lookup of all server resources.
//
// A container is the unit a request addresses: it binds a name to one
// object store holding a root group and everything linked below it.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.RegisterStore("badger-main", badgerStore)
//	reg.AddContainer(ctx, &ContainerConfig{Name: "default", Store: "badger-main"})
//
//	c, _ := reg.GetContainer("default")
//	svc := c.Service
type Registry struct {
	mu         sync.RWMutex
	stores     map[string]object.Client
	containers map[string]*Container
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores:     make(map[string]object.Client),
		containers: make(map[string]*Container),
	}
}

// RegisterStore adds a named object store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterStore(name string, store object.Client) error {
	if store == nil {
		return fmt.Errorf("cannot register nil object store")
	}
	if name == "" {
		return fmt.Errorf("cannot register object store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("object store %q already registered", name)
	}

	r.stores[name] = store
	return nil
}

// AddContainer creates and registers a container.
// This method:
//  1. Validates that the container doesn't already exist
//  2. Validates that the referenced store exists and is not used by another container
//  3. Creates the root group in the store if it is missing
//  4. Registers the container
func (r *Registry) AddContainer(ctx context.Context, config *ContainerConfig) error {
	if config.Name == "" {
		return fmt.Errorf("cannot add container with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.containers[config.Name]; exists {
		return fmt.Errorf("container %q already exists", config.Name)
	}

	store, exists := r.stores[config.Store]
	if !exists {
		return fmt.Errorf("object store %q not found", config.Store)
	}
	for _, c := range r.containers {
		if c.Store == config.Store {
			return fmt.Errorf("object store %q already holds container %q", config.Store, c.Name)
		}
	}

	svc := link.NewService(store, link.Options{MaxSoftLinkHops: config.MaxSoftLinkHops})

	if err := ensureRoot(ctx, store, svc.Lifecycle); err != nil {
		return fmt.Errorf("failed to create root group: %w", err)
	}

	r.containers[config.Name] = &Container{
		Name:     config.Name,
		Store:    config.Store,
		ReadOnly: config.ReadOnly,
		Service:  svc,
	}
	return nil
}

// ensureRoot provisions the root group of a fresh store in its own
// committed transaction.
func ensureRoot(ctx context.Context, store object.Client, lc *link.Lifecycle) error {
	h, err := store.OpenRead(ctx, object.RootID, object.MaxTxID)
	if err == nil {
		return store.CloseHandle(h)
	}
	if !errors.Is(err, object.ErrObjectNotFound) {
		return err
	}

	last, err := store.LastCommitted(ctx)
	if err != nil {
		return err
	}
	tx := last + 1

	if _, err := lc.Provision(ctx, object.RootID, object.TypeRoot, 1, tx); err != nil {
		return err
	}
	logger.Info("created root group %s at tx %d", object.RootID, tx)
	return store.Commit(ctx, tx)
}

// RemoveContainer removes a container from the registry.
// Note: This does NOT close the underlying store.
func (r *Registry) RemoveContainer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.containers[name]; !exists {
		return fmt.Errorf("container %q not found", name)
	}

	delete(r.containers, name)
	return nil
}

// GetContainer retrieves a container by name.
func (r *Registry) GetContainer(name string) (*Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.containers[name]
	if !exists {
		return nil, fmt.Errorf("container %q not found", name)
	}
	return c, nil
}

// GetStore retrieves an object store by name.
func (r *Registry) GetStore(name string) (object.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("object store %q not found", name)
	}
	return store, nil
}

// ListContainers returns all registered container names, sorted.
func (r *Registry) ListContainers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.containers))
	for name := range r.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListStores returns all registered store names, sorted.
func (r *Registry) ListStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountContainers returns the number of registered containers.
func (r *Registry) CountContainers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}
