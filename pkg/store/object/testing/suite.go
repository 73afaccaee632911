package testing

import (
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// Suite is a conformance test suite for object.Backend implementations.
// It checks the versioning contract directly and then the object layer
// (object.Store) running on top of the backend.
type Suite struct {
	// NewBackend creates a fresh, empty backend for each test. The suite
	// closes it when the test ends.
	NewBackend func(t *testing.T) object.Backend
}

// Run executes all tests in the suite.
func (suite *Suite) Run(test *testing.T) {
	test.Run("Versioning", suite.RunVersioningTests)
	test.Run("Objects", suite.RunObjectTests)
	test.Run("Keys", suite.RunKeyTests)
}

func (suite *Suite) backend(t *testing.T) object.Backend {
	backend := suite.NewBackend(t)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func (suite *Suite) store(t *testing.T) *object.Store {
	store := object.NewStore(suite.NewBackend(t))
	t.Cleanup(func() { _ = store.Close() })
	return store
}
