package gc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/marmos91/dittolink/pkg/store/object/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a memory store whose epochs are handed out by run.
type testEnv struct {
	t     *testing.T
	ctx   context.Context
	store *object.Store
	svc   *link.Service

	mu   sync.Mutex
	last object.TxID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	return &testEnv{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   link.NewService(store, link.Options{}),
	}
}

func (e *testEnv) run(ctx context.Context, fn func(tx object.Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last++
	tx := object.Tx{Write: e.last, Read: e.last - 1}
	err := fn(tx)
	if cerr := e.store.Commit(ctx, tx.Write); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (e *testEnv) provision(id object.ObjectID, typ object.ObjectType) link.ScratchPad {
	e.t.Helper()
	var pad link.ScratchPad
	require.NoError(e.t, e.run(e.ctx, func(tx object.Tx) error {
		var err error
		pad, err = e.svc.Lifecycle.Provision(e.ctx, id, typ, 1, tx.Write)
		return err
	}))
	return pad
}

func (e *testEnv) insert(parent object.ObjectID, name string, l link.Link) {
	e.t.Helper()
	require.NoError(e.t, e.run(e.ctx, func(tx object.Tx) error {
		wr, err := e.store.OpenWrite(e.ctx, parent, tx.Read)
		if err != nil {
			return err
		}
		defer e.store.CloseHandle(wr)
		return e.svc.Links.Insert(e.ctx, wr, tx.Write, name, l)
	}))
}

func (e *testEnv) objects() []object.ObjectID {
	e.t.Helper()
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()

	ids, err := e.store.ListObjects(e.ctx, last)
	require.NoError(e.t, err)
	return ids
}

func (e *testEnv) collector(cfg Config) *Collector {
	e.t.Helper()
	c, err := NewCollector(e.store, e.svc, e.run, cfg)
	require.NoError(e.t, err)
	return c
}

// populate builds a tree with a cycle, a soft link and a dangling hard link,
// then provisions an unlinked dataset. It returns the dataset's objects.
func (e *testEnv) populate() []object.ObjectID {
	e.provision(object.RootID, object.TypeRoot)

	group := object.NewObjectID()
	e.provision(group, object.TypeGroup)
	e.insert(object.RootID, "g", link.Hard{Target: group})
	e.insert(group, "up", link.Hard{Target: object.RootID})
	e.insert(object.RootID, "s", link.Soft{Target: "/nowhere"})
	e.insert(object.RootID, "d", link.Hard{Target: object.NewObjectID()})

	orphan := object.NewObjectID()
	pad := e.provision(orphan, object.TypeDataset)
	return []object.ObjectID{orphan, pad.MetadataID, pad.AttributeID}
}

func TestCollector_RemovesOrphans(t *testing.T) {
	e := newTestEnv(t)
	orphans := e.populate()
	require.Len(t, e.objects(), 9)

	stats, err := e.collector(Config{ChecksumScope: link.ChecksumStore}).RunNow(e.ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(9), stats.ExistingCount)
	assert.Equal(t, uint64(3), stats.OrphanedCount)
	assert.Equal(t, uint64(3), stats.DeletedCount)
	assert.Zero(t, stats.FailedCount)
	assert.ElementsMatch(t, orphans, stats.Orphaned)

	remaining := e.objects()
	assert.Len(t, remaining, 6)
	for _, id := range orphans {
		assert.NotContains(t, remaining, id)
	}
	assert.Zero(t, e.store.OpenHandles())
}

func TestCollector_NothingToCollect(t *testing.T) {
	e := newTestEnv(t)
	e.provision(object.RootID, object.TypeRoot)

	stats, err := e.collector(Config{}).RunNow(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.ReferencedCount)
	assert.Zero(t, stats.OrphanedCount)
	assert.Len(t, e.objects(), 3)
}

func TestCollector_DryRun(t *testing.T) {
	e := newTestEnv(t)
	orphans := e.populate()

	stats, err := e.collector(Config{DryRun: true}).RunNow(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.OrphanedCount)
	assert.Zero(t, stats.DeletedCount)
	assert.ElementsMatch(t, orphans, stats.Orphaned)
	assert.Len(t, e.objects(), 9)
}

func TestCollector_MissingRootDeletesNothing(t *testing.T) {
	e := newTestEnv(t)
	e.provision(object.NewObjectID(), object.TypeGroup)

	_, err := e.collector(Config{}).RunNow(e.ctx)
	require.ErrorIs(t, err, object.ErrObjectNotFound)
	assert.Len(t, e.objects(), 3)
}

func TestCollector_CancelledContext(t *testing.T) {
	e := newTestEnv(t)
	e.populate()

	ctx, cancel := context.WithCancel(e.ctx)
	cancel()

	_, err := e.collector(Config{}).RunNow(ctx)
	require.Error(t, err)
	assert.Len(t, e.objects(), 9)
}

func TestCollector_BackgroundWorker(t *testing.T) {
	e := newTestEnv(t)
	e.populate()

	c := e.collector(Config{Enabled: true, Interval: 10 * time.Millisecond})
	c.Start()

	assert.Eventually(t, func() bool {
		return len(e.objects()) == 6
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(e.ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
}

func TestCollector_DisabledStartIsNoop(t *testing.T) {
	e := newTestEnv(t)
	e.populate()

	c := e.collector(Config{Interval: time.Millisecond})
	c.Start()
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, e.objects(), 9)
	require.NoError(t, c.Stop(e.ctx))
}

func TestNewCollector_RequiresDependencies(t *testing.T) {
	e := newTestEnv(t)

	_, err := NewCollector(nil, e.svc, e.run, Config{})
	assert.Error(t, err)
	_, err = NewCollector(e.store, nil, e.run, Config{})
	assert.Error(t, err)
	_, err = NewCollector(e.store, e.svc, nil, Config{})
	assert.Error(t, err)
}
