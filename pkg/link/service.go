package link

import "github.com/marmos91/dittolink/pkg/store/object"

// Options tunes a Service.
type Options struct {
	// MaxSoftLinkHops bounds soft links followed per resolution
	// (0 = DefaultMaxSoftLinkHops).
	MaxSoftLinkHops int
}

// Service bundles the link components that operate on one object store.
type Service struct {
	Client    object.Client
	Links     *LinkStore
	Resolver  *Resolver
	Lifecycle *Lifecycle
	Iterator  *Iterator
}

// NewService wires the link components over client.
func NewService(client object.Client, opts Options) *Service {
	links := NewLinkStore(client)
	return &Service{
		Client:    client,
		Links:     links,
		Resolver:  NewResolver(links, opts.MaxSoftLinkHops),
		Lifecycle: NewLifecycle(client),
		Iterator:  NewIterator(links),
	}
}

// NewScope creates a request scope over the service's store.
func (s *Service) NewScope(borrowed ...object.Handles) *Scope {
	return NewScope(s.Client, borrowed...)
}
