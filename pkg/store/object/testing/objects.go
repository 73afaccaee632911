package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *Suite) RunObjectTests(test *testing.T) {
	test.Run("CreateObject_Success", suite.TestCreateObject_Success)
	test.Run("CreateObject_Exists", suite.TestCreateObject_Exists)
	test.Run("Open_NotFound", suite.TestOpen_NotFound)
	test.Run("Open_RespectsSnapshot", suite.TestOpen_RespectsSnapshot)
	test.Run("Handles_Accounting", suite.TestHandles_Accounting)
	test.Run("Handles_ReadOnly", suite.TestHandles_ReadOnly)
	test.Run("Unlink_RemovesEverything", suite.TestUnlink_RemovesEverything)
	test.Run("Unlink_NotFound", suite.TestUnlink_NotFound)
	test.Run("ListObjects_Snapshot", suite.TestListObjects_Snapshot)
	test.Run("Scratch_RoundTrip", suite.TestScratch_RoundTrip)
	test.Run("Commit_Monotonic", suite.TestCommit_Monotonic)
}

func (suite *Suite) TestCreateObject_Success(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()

	require.NoError(t, store.CreateObject(ctx, id, object.TypeGroup, 1))

	h, err := store.OpenRead(ctx, id, 1)
	require.NoError(t, err)
	defer store.CloseHandle(h)

	assert.Equal(t, id, h.ID)
	assert.Equal(t, object.TypeGroup, h.Type)
	assert.True(t, h.Defined())
	assert.False(t, h.Writable)
}

func (suite *Suite) TestCreateObject_Exists(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()

	require.NoError(t, store.CreateObject(ctx, id, object.TypeGroup, 1))
	err := store.CreateObject(ctx, id, object.TypeDataset, 2)
	assert.ErrorIs(t, err, object.ErrObjectExists)
}

func (suite *Suite) TestOpen_NotFound(t *testing.T) {
	store := suite.store(t)

	_, err := store.OpenRead(context.Background(), object.NewObjectID(), object.MaxTxID)
	assert.ErrorIs(t, err, object.ErrObjectNotFound)
	assert.Zero(t, store.OpenHandles())
}

func (suite *Suite) TestOpen_RespectsSnapshot(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()

	require.NoError(t, store.CreateObject(ctx, id, object.TypeDataset, 5))

	_, err := store.OpenRead(ctx, id, 4)
	assert.ErrorIs(t, err, object.ErrObjectNotFound)

	h, err := store.OpenRead(ctx, id, 5)
	require.NoError(t, err)
	require.NoError(t, store.CloseHandle(h))
}

func (suite *Suite) TestHandles_Accounting(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()
	require.NoError(t, store.CreateObject(ctx, id, object.TypeGroup, 1))

	rd, err := store.OpenRead(ctx, id, 1)
	require.NoError(t, err)
	wr, err := store.OpenWrite(ctx, id, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, store.OpenHandles())
	assert.False(t, rd.Same(wr))
	assert.True(t, rd.Same(rd))

	require.NoError(t, store.CloseHandle(rd))
	require.NoError(t, store.CloseHandle(wr))
	assert.Zero(t, store.OpenHandles())

	err = store.CloseHandle(rd)
	assert.ErrorIs(t, err, object.ErrHandleClosed)

	_, err = store.Get(ctx, rd, "k", 1)
	assert.ErrorIs(t, err, object.ErrHandleClosed)
}

func (suite *Suite) TestHandles_ReadOnly(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()
	require.NoError(t, store.CreateObject(ctx, id, object.TypeKV, 1))

	rd, err := store.OpenRead(ctx, id, 1)
	require.NoError(t, err)
	defer store.CloseHandle(rd)

	err = store.Put(ctx, rd, "k", []byte("v"), 2)
	assert.ErrorIs(t, err, object.ErrReadOnlyHandle)
}

func (suite *Suite) TestUnlink_RemovesEverything(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()
	require.NoError(t, store.CreateObject(ctx, id, object.TypeKV, 1))

	wr, err := store.OpenWrite(ctx, id, 1)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, wr, "a", []byte("1"), 1))
	require.NoError(t, store.SetScratch(ctx, wr, []byte("pad"), 1))
	require.NoError(t, store.CloseHandle(wr))

	require.NoError(t, store.Unlink(ctx, id, 2))

	_, err = store.OpenRead(ctx, id, 2)
	assert.ErrorIs(t, err, object.ErrObjectNotFound)

	// The old snapshot still sees the object and its keys.
	rd, err := store.OpenRead(ctx, id, 1)
	require.NoError(t, err)
	defer store.CloseHandle(rd)
	v, err := store.Get(ctx, rd, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	// Recreating the same id starts from an empty key space.
	require.NoError(t, store.CreateObject(ctx, id, object.TypeKV, 3))
	rd3, err := store.OpenRead(ctx, id, 3)
	require.NoError(t, err)
	defer store.CloseHandle(rd3)
	entries, err := store.List(ctx, rd3, 3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *Suite) TestUnlink_NotFound(t *testing.T) {
	store := suite.store(t)

	err := store.Unlink(context.Background(), object.NewObjectID(), 1)
	assert.ErrorIs(t, err, object.ErrObjectNotFound)
}

func (suite *Suite) TestScratch_RoundTrip(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	id := object.NewObjectID()
	require.NoError(t, store.CreateObject(ctx, id, object.TypeGroup, 1))

	wr, err := store.OpenWrite(ctx, id, 1)
	require.NoError(t, err)
	defer store.CloseHandle(wr)

	require.NoError(t, store.SetScratch(ctx, wr, []byte{1, 2, 3}, 1))
	data, err := store.GetScratch(ctx, wr, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func (suite *Suite) TestCommit_Monotonic(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()

	last, err := store.LastCommitted(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, store.Commit(ctx, 7))
	require.NoError(t, store.Commit(ctx, 3))

	last, err = store.LastCommitted(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.TxID(7), last)
}

func (suite *Suite) TestListObjects_Snapshot(t *testing.T) {
	store := suite.store(t)
	ctx := context.Background()
	a, b := object.NewObjectID(), object.NewObjectID()

	require.NoError(t, store.CreateObject(ctx, a, object.TypeGroup, 1))
	require.NoError(t, store.CreateObject(ctx, b, object.TypeKV, 2))
	require.NoError(t, store.Unlink(ctx, a, 3))

	ids, err := store.ListObjects(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []object.ObjectID{a}, ids)

	ids, err = store.ListObjects(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []object.ObjectID{a, b}, ids)

	ids, err = store.ListObjects(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []object.ObjectID{b}, ids)
}
