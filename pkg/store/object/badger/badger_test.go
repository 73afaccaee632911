package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	objecttesting "github.com/marmos91/dittolink/pkg/store/object/testing"
	"github.com/stretchr/testify/require"
)

func TestBadgerBackend(t *testing.T) {
	suite := &objecttesting.Suite{
		NewBackend: func(t *testing.T) object.Backend {
			backend, err := New(context.Background(), Config{DBPath: t.TempDir()})
			require.NoError(t, err)
			return backend
		},
	}
	suite.Run(t)
}

func TestBadgerBackend_ReopenKeepsVersions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := New(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v1"), 1))
	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v2"), 5))
	require.NoError(t, backend.Close())

	backend, err = New(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	defer backend.Close()

	v, err := backend.Get(ctx, []byte("k"), 3)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	v, err = backend.Get(ctx, []byte("k"), object.MaxTxID)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}
