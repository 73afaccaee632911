package link

import (
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_Provision(t *testing.T) {
	e := newTestEnv(t)

	id := object.NewObjectID()
	tx := e.nextTx()
	pad, err := e.svc.Lifecycle.Provision(e.ctx, id, object.TypeDataset, 1, tx.Write)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), e.linkCount(id))
	for _, oid := range []object.ObjectID{id, pad.MetadataID, pad.AttributeID} {
		h, err := e.store.OpenRead(e.ctx, oid, e.last)
		require.NoError(t, err)
		require.NoError(t, e.store.CloseHandle(h))
	}

	_, err = e.svc.Lifecycle.Provision(e.ctx, id, object.TypeDataset, 1, e.nextTx().Write)
	requireCode(t, err, ErrAlreadyExists)
	e.requireNoOpenHandles()
}

func TestLifecycle_IncrementAndDecrement(t *testing.T) {
	e := newTestEnv(t)
	id := e.provision(object.TypeDataset)
	lc := e.svc.Lifecycle

	for want := uint64(1); want <= 3; want++ {
		tx := e.nextTx()
		scope := e.svc.NewScope()
		target, err := e.svc.Resolver.Open(e.ctx, scope, Location{ID: id}, "", tx.Read)
		require.NoError(t, err)

		count, err := lc.IncrementLinkCount(e.ctx, scope, target, nil, tx, ChecksumStore)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		require.NoError(t, scope.Close())
	}
	assert.Equal(t, uint64(3), e.linkCount(id))

	for want := uint64(2); want >= 1; want-- {
		scope := e.svc.NewScope()
		deleted, remaining, err := lc.DecrementAndMaybeDelete(e.ctx, scope, id, e.nextTx(), ChecksumStore)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Equal(t, want, remaining)
		require.NoError(t, scope.Close())
	}

	e.requireNoOpenHandles()
}

func TestLifecycle_LastDecrementDeletes(t *testing.T) {
	e := newTestEnv(t)
	id := object.NewObjectID()
	pad, err := e.svc.Lifecycle.Provision(e.ctx, id, object.TypeGroup, 1, e.nextTx().Write)
	require.NoError(t, err)

	scope := e.svc.NewScope()
	deleted, remaining, err := e.svc.Lifecycle.DecrementAndMaybeDelete(e.ctx, scope, id, e.nextTx(), ChecksumStore)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, remaining)
	assert.Zero(t, scope.Held())
	require.NoError(t, scope.Close())

	for _, oid := range []object.ObjectID{id, pad.MetadataID, pad.AttributeID} {
		_, err := e.store.OpenRead(e.ctx, oid, e.last)
		assert.ErrorIs(t, err, object.ErrObjectNotFound)
	}
	e.requireNoOpenHandles()
}

func TestLifecycle_PartialDeletionReportsAllFailures(t *testing.T) {
	e := newTestEnv(t)
	id := object.NewObjectID()
	pad, err := e.svc.Lifecycle.Provision(e.ctx, id, object.TypeGroup, 1, e.nextTx().Write)
	require.NoError(t, err)

	// The attribute sub-object disappears behind the lifecycle's back.
	require.NoError(t, e.store.Unlink(e.ctx, pad.AttributeID, e.nextTx().Write))

	scope := e.svc.NewScope()
	deleted, _, err := e.svc.Lifecycle.DecrementAndMaybeDelete(e.ctx, scope, id, e.nextTx(), ChecksumStore)
	requireCode(t, err, ErrStoreFailure)
	assert.True(t, deleted)
	require.NoError(t, scope.Close())

	// The other two unlinks still happened.
	for _, oid := range []object.ObjectID{id, pad.MetadataID} {
		_, err := e.store.OpenRead(e.ctx, oid, e.last)
		assert.ErrorIs(t, err, object.ErrObjectNotFound)
	}
}

func TestLifecycle_KnownPadSkipsScratchRead(t *testing.T) {
	e := newTestEnv(t)
	id := object.NewObjectID()
	pad, err := e.svc.Lifecycle.Provision(e.ctx, id, object.TypeGroup, 1, e.nextTx().Write)
	require.NoError(t, err)

	// Corrupt the scratch pad; with a known pad it is never read.
	tx := e.nextTx()
	wr, err := e.store.OpenWrite(e.ctx, id, tx.Read)
	require.NoError(t, err)
	require.NoError(t, e.store.SetScratch(e.ctx, wr, []byte("garbage"), tx.Write))
	require.NoError(t, e.store.CloseHandle(wr))

	tx = e.nextTx()
	scope := e.svc.NewScope()
	target, err := e.svc.Resolver.Open(e.ctx, scope, Location{ID: id}, "", tx.Read)
	require.NoError(t, err)

	_, err = e.svc.Lifecycle.IncrementLinkCount(e.ctx, scope, target, nil, tx, ChecksumStore)
	requireCode(t, err, ErrCorruptData)

	count, err := e.svc.Lifecycle.IncrementLinkCount(e.ctx, scope, target, &pad, tx, ChecksumStore)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
	require.NoError(t, scope.Close())
	e.requireNoOpenHandles()
}

func TestLifecycle_IntegrityFailure(t *testing.T) {
	e := newTestEnv(t)
	id := object.NewObjectID()
	pad, err := e.svc.Lifecycle.Provision(e.ctx, id, object.TypeGroup, 2, e.nextTx().Write)
	require.NoError(t, err)

	bad := EncodeScratchPad(pad)
	bad[20] ^= 0x01

	tx := e.nextTx()
	wr, err := e.store.OpenWrite(e.ctx, id, tx.Read)
	require.NoError(t, err)
	require.NoError(t, e.store.SetScratch(e.ctx, wr, bad, tx.Write))
	require.NoError(t, e.store.CloseHandle(wr))

	scope := e.svc.NewScope()
	_, _, err = e.svc.Lifecycle.DecrementAndMaybeDelete(e.ctx, scope, id, e.nextTx(), ChecksumStore)
	requireCode(t, err, ErrIntegrity)
	require.NoError(t, scope.Close())

	// Without store verification the flipped bit goes unnoticed.
	scope = e.svc.NewScope()
	deleted, remaining, err := e.svc.Lifecycle.DecrementAndMaybeDelete(e.ctx, scope, id, e.nextTx(), 0)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, uint64(1), remaining)
	require.NoError(t, scope.Close())
	e.requireNoOpenHandles()
}
