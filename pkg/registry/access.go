package registry

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by CheckWritable for read-only containers.
var ErrReadOnly = errors.New("container is read-only")

// CheckWritable reports whether mutating requests may run against the
// named container.
//
// Returns:
//   - nil if the container accepts writes
//   - an error wrapping ErrReadOnly if it is read-only
//   - an error if the container is not registered
func (r *Registry) CheckWritable(name string) error {
	r.mu.RLock()
	c, exists := r.containers[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("container %q not found", name)
	}
	if c.ReadOnly {
		return fmt.Errorf("container %q: %w", name, ErrReadOnly)
	}
	return nil
}
