package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *Suite) RunVersioningTests(test *testing.T) {
	test.Run("Get_Missing", suite.TestGet_Missing)
	test.Run("Get_SeesNewestVersionAtOrBelow", suite.TestGet_SeesNewestVersionAtOrBelow)
	test.Run("Put_SameTxReplaces", suite.TestPut_SameTxReplaces)
	test.Run("Delete_HidesFromLaterReads", suite.TestDelete_HidesFromLaterReads)
	test.Run("Scan_PrefixAndOrder", suite.TestScan_PrefixAndOrder)
	test.Run("Scan_Snapshot", suite.TestScan_Snapshot)
}

func (suite *Suite) TestGet_Missing(t *testing.T) {
	backend := suite.backend(t)

	_, err := backend.Get(context.Background(), []byte("nope"), object.MaxTxID)
	assert.ErrorIs(t, err, object.ErrKeyNotFound)
}

func (suite *Suite) TestGet_SeesNewestVersionAtOrBelow(t *testing.T) {
	backend := suite.backend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v2"), 2))
	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v5"), 5))

	_, err := backend.Get(ctx, []byte("k"), 1)
	assert.ErrorIs(t, err, object.ErrKeyNotFound, "no version visible before first write")

	for at, want := range map[object.TxID]string{2: "v2", 4: "v2", 5: "v5", 9: "v5"} {
		v, err := backend.Get(ctx, []byte("k"), at)
		require.NoError(t, err)
		assert.Equal(t, want, string(v), "read at %d", at)
	}
}

func (suite *Suite) TestPut_SameTxReplaces(t *testing.T) {
	backend := suite.backend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("first"), 3))
	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("second"), 3))

	v, err := backend.Get(ctx, []byte("k"), 3)
	require.NoError(t, err)
	assert.Equal(t, "second", string(v))
}

func (suite *Suite) TestDelete_HidesFromLaterReads(t *testing.T) {
	backend := suite.backend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v"), 1))
	require.NoError(t, backend.Delete(ctx, []byte("k"), 2))

	v, err := backend.Get(ctx, []byte("k"), 1)
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	_, err = backend.Get(ctx, []byte("k"), 2)
	assert.ErrorIs(t, err, object.ErrKeyNotFound)

	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("again"), 3))
	v, err = backend.Get(ctx, []byte("k"), 3)
	require.NoError(t, err)
	assert.Equal(t, "again", string(v))
}

func (suite *Suite) TestScan_PrefixAndOrder(t *testing.T) {
	backend := suite.backend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, []byte("p:b"), []byte("2"), 1))
	require.NoError(t, backend.Put(ctx, []byte("p:a"), []byte("1"), 1))
	require.NoError(t, backend.Put(ctx, []byte("q:a"), []byte("x"), 1))
	require.NoError(t, backend.Put(ctx, []byte("p:c"), []byte("3"), 1))
	require.NoError(t, backend.Delete(ctx, []byte("p:c"), 2))

	kvs, err := backend.Scan(ctx, []byte("p:"), 2)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "p:a", string(kvs[0].Key))
	assert.Equal(t, "1", string(kvs[0].Value))
	assert.Equal(t, "p:b", string(kvs[1].Key))
}

func (suite *Suite) TestScan_Snapshot(t *testing.T) {
	backend := suite.backend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, []byte("p:a"), []byte("1"), 1))
	require.NoError(t, backend.Put(ctx, []byte("p:b"), []byte("2"), 4))

	kvs, err := backend.Scan(ctx, []byte("p:"), 3)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, "p:a", string(kvs[0].Key))
}
