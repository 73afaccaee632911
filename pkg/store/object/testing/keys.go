package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *Suite) RunKeyTests(test *testing.T) {
	test.Run("PutIfAbsent_Conflict", suite.TestPutIfAbsent_Conflict)
	test.Run("Delete_Missing", suite.TestDelete_Missing)
	test.Run("List_OnlyOwnKeys", suite.TestList_OnlyOwnKeys)
	test.Run("Get_Snapshot", suite.TestGet_Snapshot)
}

func (suite *Suite) openWrite(t *testing.T, store *object.Store, typ object.ObjectType) object.Handle {
	ctx := context.Background()
	id := object.NewObjectID()
	require.NoError(t, store.CreateObject(ctx, id, typ, 1))

	wr, err := store.OpenWrite(ctx, id, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.CloseHandle(wr) })
	return wr
}

func (suite *Suite) TestPutIfAbsent_Conflict(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	wr := suite.openWrite(t, store, object.TypeGroup)

	require.NoError(t, store.PutIfAbsent(ctx, wr, "name", []byte("one"), 2))
	err := store.PutIfAbsent(ctx, wr, "name", []byte("two"), 3)
	assert.ErrorIs(t, err, object.ErrKeyExists)

	v, err := store.Get(ctx, wr, "name", 3)
	require.NoError(t, err)
	assert.Equal(t, "one", string(v))
}

func (suite *Suite) TestDelete_Missing(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	wr := suite.openWrite(t, store, object.TypeGroup)

	err := store.Delete(ctx, wr, "ghost", 2)
	assert.ErrorIs(t, err, object.ErrKeyNotFound)

	require.NoError(t, store.Put(ctx, wr, "k", []byte("v"), 2))
	require.NoError(t, store.Delete(ctx, wr, "k", 3))
	err = store.Delete(ctx, wr, "k", 4)
	assert.ErrorIs(t, err, object.ErrKeyNotFound)
}

func (suite *Suite) TestList_OnlyOwnKeys(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	a := suite.openWrite(t, store, object.TypeGroup)
	b := suite.openWrite(t, store, object.TypeGroup)

	require.NoError(t, store.Put(ctx, a, "x", []byte("1"), 2))
	require.NoError(t, store.Put(ctx, a, "y:z", []byte("2"), 2))
	require.NoError(t, store.Put(ctx, b, "x", []byte("3"), 2))

	entries, err := store.List(ctx, a, 2)
	require.NoError(t, err)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{"x", "y:z"}, keys)
}

func (suite *Suite) TestGet_Snapshot(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	wr := suite.openWrite(t, store, object.TypeKV)

	require.NoError(t, store.Put(ctx, wr, "count", []byte{1}, 2))
	require.NoError(t, store.Put(ctx, wr, "count", []byte{2}, 4))

	v, err := store.Get(ctx, wr, "count", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)
}
