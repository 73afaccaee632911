package link

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/marmos91/dittolink/pkg/store/object/memory"
	"github.com/stretchr/testify/require"
)

// testEnv is a container with a provisioned root group. Every mutation
// uses a new write id whose read snapshot is the previous write id.
type testEnv struct {
	t     *testing.T
	ctx   context.Context
	store *object.Store
	svc   *Service
	last  object.TxID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	e := &testEnv{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   NewService(store, Options{}),
	}

	_, err := e.svc.Lifecycle.Provision(e.ctx, object.RootID, object.TypeRoot, 1, e.nextTx().Write)
	require.NoError(t, err)
	return e
}

func (e *testEnv) nextTx() object.Tx {
	e.last++
	return object.Tx{Write: e.last, Read: e.last - 1}
}

// readTx reads the newest state.
func (e *testEnv) readTx() object.Tx {
	return object.Tx{Write: e.last + 1, Read: e.last}
}

func rootLoc() Location {
	return Location{ID: object.RootID}
}

// provision creates an unlinked object with link count 0.
func (e *testEnv) provision(typ object.ObjectType) object.ObjectID {
	e.t.Helper()
	id := object.NewObjectID()
	_, err := e.svc.Lifecycle.Provision(e.ctx, id, typ, 0, e.nextTx().Write)
	require.NoError(e.t, err)
	return id
}

// link inserts path -> l and, for hard links, counts the reference.
func (e *testEnv) link(path string, l Link) {
	e.t.Helper()
	tx := e.nextTx()

	scope := e.svc.NewScope()
	defer func() { require.NoError(e.t, scope.Close()) }()

	res, err := e.svc.Resolver.Resolve(e.ctx, scope, rootLoc(), path, tx, true)
	require.NoError(e.t, err)
	require.NoError(e.t, e.svc.Links.Insert(e.ctx, res.Parent.Handles.Write, tx.Write, res.Name, l))

	if hard, ok := l.(Hard); ok {
		target, err := e.svc.Resolver.Open(e.ctx, scope, Location{ID: hard.Target}, "", tx.Read)
		require.NoError(e.t, err)
		_, err = e.svc.Lifecycle.IncrementLinkCount(e.ctx, scope, target, nil, tx, ChecksumStore)
		require.NoError(e.t, err)
	}
}

// mkgroup creates a group and links it at path.
func (e *testEnv) mkgroup(path string) object.ObjectID {
	e.t.Helper()
	id := e.provision(object.TypeGroup)
	e.link(path, Hard{Target: id})
	return id
}

func (e *testEnv) linkCount(id object.ObjectID) uint64 {
	e.t.Helper()
	n, err := e.svc.Lifecycle.LinkCount(e.ctx, id, e.last, ChecksumStore)
	require.NoError(e.t, err)
	return n
}

func (e *testEnv) requireNoOpenHandles() {
	e.t.Helper()
	require.Zero(e.t, e.store.OpenHandles(), "handles leaked")
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, IsCode(err, code), "expected %s, got %v", code, err)
}
