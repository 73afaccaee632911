package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/registry"
	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/marmos91/dittolink/pkg/store/object/memory"
	"github.com/stretchr/testify/require"
)

const testContainer = "default"

// testEnv serves requests against one memory-backed container. Every
// mutation runs in a new transaction that reads the previous one.
type testEnv struct {
	t       *testing.T
	ctx     *Context
	store   *object.Store
	faults  *faultClient
	reg     *registry.Registry
	svc     *link.Service
	handler *DefaultHandler
	last    object.TxID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	faults := &faultClient{Client: store}
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterStore("mem", faults))
	require.NoError(t, reg.AddContainer(context.Background(), &registry.ContainerConfig{Name: testContainer, Store: "mem"}))

	c, err := reg.GetContainer(testContainer)
	require.NoError(t, err)

	last, err := store.LastCommitted(context.Background())
	require.NoError(t, err)

	return &testEnv{
		t:       t,
		ctx:     &Context{Context: context.Background(), ClientAddr: "test"},
		store:   store,
		faults:  faults,
		reg:     reg,
		svc:     c.Service,
		handler: NewDefaultHandler(reg, Options{MaxValueLength: 64}),
		last:    last,
	}
}

func (e *testEnv) nextTx() object.Tx {
	e.last++
	return object.Tx{Write: e.last, Read: e.last - 1}
}

func rootAt(path string) Location {
	return Location{ID: object.RootID, Path: path}
}

// provision creates an unlinked object with link count 0.
func (e *testEnv) provision(typ object.ObjectType) (object.ObjectID, link.ScratchPad) {
	e.t.Helper()
	id := object.NewObjectID()
	pad, err := e.svc.Lifecycle.Provision(context.Background(), id, typ, 0, e.nextTx().Write)
	require.NoError(e.t, err)
	return id, pad
}

func (e *testEnv) createHard(path string, target object.ObjectID) *CreateResponse {
	e.t.Helper()
	resp, err := e.handler.Create(e.ctx, &CreateRequest{
		Container:     testContainer,
		Tx:            e.nextTx(),
		Loc:           rootAt(path),
		Kind:          link.KindHard,
		Target:        Location{ID: target},
		ChecksumScope: link.ChecksumStore,
	})
	require.NoError(e.t, err)
	require.NotNil(e.t, resp)
	e.requireNoOpenHandles()
	return resp
}

func (e *testEnv) createSoft(path, value string) *CreateResponse {
	e.t.Helper()
	resp, err := e.handler.Create(e.ctx, &CreateRequest{
		Container: testContainer,
		Tx:        e.nextTx(),
		Loc:       rootAt(path),
		Kind:      link.KindSoft,
		Value:     value,
	})
	require.NoError(e.t, err)
	e.requireNoOpenHandles()
	return resp
}

// mkgroup creates a group linked at path.
func (e *testEnv) mkgroup(path string) object.ObjectID {
	e.t.Helper()
	id, _ := e.provision(object.TypeGroup)
	require.Equal(e.t, StatusOK, e.createHard(path, id).Status)
	return id
}

func (e *testEnv) exists(path string) bool {
	e.t.Helper()
	resp, err := e.handler.Exists(e.ctx, &ExistsRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt(path)})
	require.NoError(e.t, err)
	require.Equal(e.t, StatusOK, resp.Status)
	e.requireNoOpenHandles()
	return resp.Exists
}

func (e *testEnv) remove(path string) *RemoveResponse {
	e.t.Helper()
	resp, err := e.handler.Remove(e.ctx, &RemoveRequest{
		Container:     testContainer,
		Tx:            e.nextTx(),
		Loc:           rootAt(path),
		ChecksumScope: link.ChecksumStore,
	})
	require.NoError(e.t, err)
	e.requireNoOpenHandles()
	return resp
}

func (e *testEnv) move(src, dst string, isCopy bool) *MoveResponse {
	e.t.Helper()
	resp, err := e.handler.Move(e.ctx, &MoveRequest{
		Container:     testContainer,
		Tx:            e.nextTx(),
		Src:           rootAt(src),
		Dst:           rootAt(dst),
		Copy:          isCopy,
		ChecksumScope: link.ChecksumStore,
	})
	require.NoError(e.t, err)
	e.requireNoOpenHandles()
	return resp
}

func (e *testEnv) linkCount(id object.ObjectID) uint64 {
	e.t.Helper()
	n, err := e.svc.Lifecycle.LinkCount(context.Background(), id, e.last, link.ChecksumStore)
	require.NoError(e.t, err)
	return n
}

func (e *testEnv) requireNoOpenHandles() {
	e.t.Helper()
	require.Zero(e.t, e.store.OpenHandles(), "handles leaked")
}

var errInjected = errors.New("injected store failure")

// faultClient fails selected calls of the wrapped client. Faults stay armed
// until clear is called.
type faultClient struct {
	object.Client

	deleteKeys map[string]bool          // Delete fails for these keys
	openIDs    map[object.ObjectID]bool // OpenRead fails for these objects
	putIDs     map[object.ObjectID]bool // Put fails on handles of these objects
}

func (f *faultClient) failDelete(key string) {
	f.deleteKeys = map[string]bool{key: true}
}

func (f *faultClient) failOpenRead(id object.ObjectID) {
	f.openIDs = map[object.ObjectID]bool{id: true}
}

func (f *faultClient) failPut(id object.ObjectID) {
	f.putIDs = map[object.ObjectID]bool{id: true}
}

func (f *faultClient) clear() {
	f.deleteKeys, f.openIDs, f.putIDs = nil, nil, nil
}

func (f *faultClient) OpenRead(ctx context.Context, id object.ObjectID, rtid object.TxID) (object.Handle, error) {
	if f.openIDs[id] {
		return object.Handle{}, errInjected
	}
	return f.Client.OpenRead(ctx, id, rtid)
}

func (f *faultClient) Put(ctx context.Context, h object.Handle, key string, value []byte, wtid object.TxID) error {
	if f.putIDs[h.ID] {
		return errInjected
	}
	return f.Client.Put(ctx, h, key, value, wtid)
}

func (f *faultClient) Delete(ctx context.Context, h object.Handle, key string, wtid object.TxID) error {
	if f.deleteKeys[key] {
		return errInjected
	}
	return f.Client.Delete(ctx, h, key, wtid)
}
