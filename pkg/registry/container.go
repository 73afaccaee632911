package registry

import "github.com/marmos91/dittolink/pkg/link"

// Container binds a container name to the store that holds it.
type Container struct {
	Name     string
	Store    string // Name of the object store
	ReadOnly bool

	// Service runs link operations against the container's store.
	Service *link.Service
}

// ContainerConfig contains all configuration needed to create a container.
type ContainerConfig struct {
	Name            string
	Store           string
	ReadOnly        bool
	MaxSoftLinkHops int
}
