package link

import (
	"testing"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rootHandles opens a read/write pair on the root group for the test.
func (e *testEnv) rootHandles() object.Handles {
	e.t.Helper()
	scope := e.svc.NewScope()
	e.t.Cleanup(func() { _ = scope.Close() })

	hs, err := scope.OpenPair(e.ctx, object.RootID, e.last)
	require.NoError(e.t, err)
	return hs
}

func TestLinkStore_InsertLookupRemove(t *testing.T) {
	e := newTestEnv(t)
	root := e.rootHandles()
	links := e.svc.Links
	target := object.NewObjectID()

	tx := e.nextTx()
	require.NoError(t, links.Insert(e.ctx, root.Write, tx.Write, "h", Hard{Target: target}))
	require.NoError(t, links.Insert(e.ctx, root.Write, tx.Write, "s", Soft{Target: "/a/b"}))

	l, err := links.Lookup(e.ctx, root.Read, tx.Write, "h")
	require.NoError(t, err)
	assert.Equal(t, Hard{Target: target}, l)

	// Not visible in the snapshot before the write.
	_, err = links.Lookup(e.ctx, root.Read, tx.Read, "h")
	requireCode(t, err, ErrNotFound)

	tx = e.nextTx()
	require.NoError(t, links.Remove(e.ctx, root.Write, tx.Write, "h"))
	assert.False(t, links.Exists(e.ctx, root.Read, tx.Write, "h"))
	assert.True(t, links.Exists(e.ctx, root.Read, tx.Write, "s"))
}

func TestLinkStore_DuplicateName(t *testing.T) {
	e := newTestEnv(t)
	root := e.rootHandles()
	links := e.svc.Links

	tx := e.nextTx()
	require.NoError(t, links.Insert(e.ctx, root.Write, tx.Write, "x", Soft{Target: "one"}))

	tx = e.nextTx()
	err := links.Insert(e.ctx, root.Write, tx.Write, "x", Soft{Target: "two"})
	requireCode(t, err, ErrAlreadyExists)

	l, err := links.Lookup(e.ctx, root.Read, tx.Write, "x")
	require.NoError(t, err)
	assert.Equal(t, Soft{Target: "one"}, l)
}

func TestLinkStore_RemoveMissing(t *testing.T) {
	e := newTestEnv(t)
	root := e.rootHandles()

	err := e.svc.Links.Remove(e.ctx, root.Write, e.nextTx().Write, "ghost")
	requireCode(t, err, ErrNotFound)
}

func TestLinkStore_InvalidInput(t *testing.T) {
	e := newTestEnv(t)
	root := e.rootHandles()
	wtid := e.nextTx().Write

	for _, name := range []string{"", ".", "a/b"} {
		err := e.svc.Links.Insert(e.ctx, root.Write, wtid, name, Soft{Target: "t"})
		requireCode(t, err, ErrInvalidArgument)
	}

	err := e.svc.Links.Insert(e.ctx, root.Write, wtid, "empty", Soft{Target: ""})
	requireCode(t, err, ErrInvalidArgument)
}

func TestLinkStore_ListAndCorruptEntry(t *testing.T) {
	e := newTestEnv(t)
	root := e.rootHandles()
	links := e.svc.Links

	tx := e.nextTx()
	require.NoError(t, links.Insert(e.ctx, root.Write, tx.Write, "a", Soft{Target: "1"}))
	require.NoError(t, links.Insert(e.ctx, root.Write, tx.Write, "b", Soft{Target: "2"}))

	entries, err := links.List(e.ctx, root.Read, tx.Write)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := []string{entries[0].Name, entries[1].Name}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	tx = e.nextTx()
	require.NoError(t, e.store.Put(e.ctx, root.Write, "bad", []byte{0xde, 0xad}, tx.Write))

	_, err = links.List(e.ctx, root.Read, tx.Write)
	requireCode(t, err, ErrCorruptData)

	_, err = links.Lookup(e.ctx, root.Read, tx.Write, "bad")
	requireCode(t, err, ErrCorruptData)
	assert.False(t, links.Exists(e.ctx, root.Read, tx.Write, "bad"))
}
