package handlers

import (
	"context"
	"testing"

	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/registry"
	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/marmos91/dittolink/pkg/store/object/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_HardLinkRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.provision(object.TypeDataset)

	resp := e.createHard("d", id)
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, uint64(1), resp.LinkCount)

	info, err := e.handler.GetInfo(e.ctx, &GetInfoRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt("d")})
	require.NoError(t, err)
	require.Equal(t, StatusOK, info.Status)
	assert.Equal(t, link.Info{Kind: link.KindHard, Address: id}, info.Info)
	assert.Equal(t, uint64(1), e.linkCount(id))
	e.requireNoOpenHandles()
}

func TestCreate_SoftLinkRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, StatusOK, e.createSoft("s", "X").Status)

	resp, err := e.handler.GetValue(e.ctx, &GetValueRequest{
		Container: testContainer, ReadTx: e.last, Loc: rootAt("s"), Length: uint64(len("X") + 1),
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, []byte("X\x00"), resp.Value)
	assert.Equal(t, uint64(2), resp.ValueSize)

	info, err := e.handler.GetInfo(e.ctx, &GetInfoRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt("s")})
	require.NoError(t, err)
	assert.Equal(t, link.Info{Kind: link.KindSoft, ValueSize: 2}, info.Info)
	e.requireNoOpenHandles()
}

func TestCreate_DuplicateNameLeavesStateUnchanged(t *testing.T) {
	e := newTestEnv(t)
	first, _ := e.provision(object.TypeDataset)
	second, _ := e.provision(object.TypeDataset)

	require.Equal(t, StatusOK, e.createHard("d", first).Status)
	assert.Equal(t, StatusExists, e.createHard("d", second).Status)
	assert.Equal(t, StatusExists, e.createSoft("d", "elsewhere").Status)

	assert.Equal(t, uint64(1), e.linkCount(first))
	assert.Equal(t, uint64(0), e.linkCount(second))

	info, err := e.handler.GetInfo(e.ctx, &GetInfoRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt("d")})
	require.NoError(t, err)
	assert.Equal(t, first, info.Info.Address)
}

func TestCreate_Failures(t *testing.T) {
	e := newTestEnv(t)
	e.mkgroup("g")

	tests := []struct {
		name string
		req  CreateRequest
		want Status
	}{
		{"missing parent", CreateRequest{Loc: rootAt("nope/d"), Kind: link.KindSoft, Value: "x"}, StatusNotFound},
		{"missing hard target", CreateRequest{Loc: rootAt("d"), Kind: link.KindHard, Target: Location{ID: object.NewObjectID()}}, StatusNotFound},
		{"empty soft value", CreateRequest{Loc: rootAt("d"), Kind: link.KindSoft}, StatusInvalid},
		{"empty name", CreateRequest{Loc: rootAt(""), Kind: link.KindSoft, Value: "x"}, StatusInvalid},
		{"error kind", CreateRequest{Loc: rootAt("d"), Kind: link.KindError}, StatusInvalid},
		{"unknown container", CreateRequest{Container: "other", Loc: rootAt("d"), Kind: link.KindSoft, Value: "x"}, StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if req.Container == "" {
				req.Container = testContainer
			}
			req.Tx = e.nextTx()

			resp, err := e.handler.Create(e.ctx, &req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Status)
			e.requireNoOpenHandles()
		})
	}

	assert.False(t, e.exists("d"))
}

func TestCreate_IntegrityFailureWithdrawsEntry(t *testing.T) {
	e := newTestEnv(t)
	id, pad := e.provision(object.TypeDataset)

	// Corrupt the stored checksum.
	tx := e.nextTx()
	data := link.EncodeScratchPad(pad)
	data[len(data)-1] ^= 0xff
	wr, err := e.store.OpenWrite(context.Background(), id, tx.Read)
	require.NoError(t, err)
	require.NoError(t, e.store.SetScratch(context.Background(), wr, data, tx.Write))
	require.NoError(t, e.store.CloseHandle(wr))

	resp := e.createHard("d", id)
	assert.Equal(t, StatusIntegrity, resp.Status)
	assert.False(t, e.exists("d"), "uncounted link must not remain")
}

func TestCreate_KnownMetadataReusesCallerHandle(t *testing.T) {
	e := newTestEnv(t)
	id, pad := e.provision(object.TypeDataset)

	tx := e.nextTx()
	rd, err := e.store.OpenRead(context.Background(), id, tx.Read)
	require.NoError(t, err)

	resp, err := e.handler.Create(e.ctx, &CreateRequest{
		Container: testContainer,
		Tx:        tx,
		Loc:       rootAt("d"),
		Kind:      link.KindHard,
		Target:    Location{ID: id, Handles: object.Handles{Read: rd}, MetadataID: pad.MetadataID},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, uint64(1), resp.LinkCount)

	assert.Equal(t, 1, e.store.OpenHandles(), "caller handle stays open")
	require.NoError(t, e.store.CloseHandle(rd))
	e.requireNoOpenHandles()
}

func TestCreate_RelativeToBorrowedContainer(t *testing.T) {
	e := newTestEnv(t)
	g := e.mkgroup("g")

	tx := e.nextTx()
	hs := object.Handles{}
	var err error
	hs.Read, err = e.store.OpenRead(context.Background(), g, tx.Read)
	require.NoError(t, err)
	hs.Write, err = e.store.OpenWrite(context.Background(), g, tx.Read)
	require.NoError(t, err)

	resp, err := e.handler.Create(e.ctx, &CreateRequest{
		Container: testContainer,
		Tx:        tx,
		Loc:       Location{ID: g, Handles: hs, Path: "d"},
		Kind:      link.KindHard,
		Target:    Location{ID: object.RootID, Path: "/g"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status)

	assert.Equal(t, 2, e.store.OpenHandles(), "borrowed handles stay open")
	require.NoError(t, e.store.CloseHandle(hs.Read))
	require.NoError(t, e.store.CloseHandle(hs.Write))

	// g now links to itself as g/d.
	assert.Equal(t, uint64(2), e.linkCount(g))
	assert.True(t, e.exists("g/d/d/d"))
}

func TestExists(t *testing.T) {
	e := newTestEnv(t)
	assert.False(t, e.exists("never"))
	assert.False(t, e.exists("missing/parent/name"))
	assert.False(t, e.exists(""))

	id, _ := e.provision(object.TypeDataset)
	e.createHard("d", id)
	assert.True(t, e.exists("d"))
	assert.False(t, e.exists("d/below"), "a dataset is not a container")

	e.createSoft("dangling", "/nowhere")
	assert.True(t, e.exists("dangling"), "soft links are not followed")

	require.Equal(t, StatusOK, e.remove("d").Status)
	assert.False(t, e.exists("d"))
}

func TestExists_DanglingHardLink(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.provision(object.TypeDataset)
	e.createHard("a", id)
	e.createHard("b", id)

	// Unlink the object behind the links' back.
	require.NoError(t, e.store.Unlink(context.Background(), id, e.nextTx().Write))
	assert.False(t, e.exists("a"))
}

func TestExists_UnknownContainer(t *testing.T) {
	e := newTestEnv(t)
	resp, err := e.handler.Exists(e.ctx, &ExistsRequest{Container: "other", ReadTx: e.last, Loc: rootAt("a")})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, resp.Status)
	assert.False(t, resp.Exists)
}

func TestGetInfo_FailureReportsErrorKind(t *testing.T) {
	e := newTestEnv(t)
	resp, err := e.handler.GetInfo(e.ctx, &GetInfoRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt("missing")})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, resp.Status)
	assert.Equal(t, link.KindError, resp.Info.Kind)
	e.requireNoOpenHandles()
}

func TestGetValue(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.provision(object.TypeDataset)
	e.createHard("hard", id)
	e.createSoft("soft", "/a/b")

	get := func(path string, length uint64) *GetValueResponse {
		resp, err := e.handler.GetValue(e.ctx, &GetValueRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt(path), Length: length})
		require.NoError(t, err)
		e.requireNoOpenHandles()
		return resp
	}

	t.Run("Truncated", func(t *testing.T) {
		resp := get("soft", 2)
		require.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, []byte("/a"), resp.Value)
		assert.Equal(t, uint64(5), resp.ValueSize)
	})

	t.Run("LargerBufferReturnsWholeValue", func(t *testing.T) {
		resp := get("soft", 64)
		require.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, []byte("/a/b\x00"), resp.Value)
	})

	t.Run("HardLink", func(t *testing.T) {
		assert.Equal(t, StatusWrongKind, get("hard", 16).Status)
	})

	t.Run("Missing", func(t *testing.T) {
		assert.Equal(t, StatusNotFound, get("missing", 16).Status)
	})

	t.Run("OverLimit", func(t *testing.T) {
		resp := get("soft", 65)
		assert.Equal(t, StatusNoMemory, resp.Status)
		assert.Empty(t, resp.Value)
	})
}

func TestRemove(t *testing.T) {
	e := newTestEnv(t)

	t.Run("Missing", func(t *testing.T) {
		assert.Equal(t, StatusNotFound, e.remove("missing").Status)
	})

	t.Run("SoftLinkKeepsTarget", func(t *testing.T) {
		id, _ := e.provision(object.TypeDataset)
		e.createHard("target", id)
		e.createSoft("alias", "target")

		resp := e.remove("alias")
		require.Equal(t, StatusOK, resp.Status)
		assert.False(t, resp.Deleted)
		assert.Equal(t, uint64(1), e.linkCount(id))
	})
}

// Two hard links from two containers share one link count; the object
// goes away with the last one.
func TestRemove_SharedObjectScenario(t *testing.T) {
	e := newTestEnv(t)
	e.mkgroup("p1")
	e.mkgroup("p2")
	o, pad := e.provision(object.TypeDataset)

	require.Equal(t, StatusOK, e.createHard("p1/x", o).Status)
	require.Equal(t, StatusOK, e.createHard("p2/y", o).Status)
	assert.Equal(t, uint64(2), e.linkCount(o))

	resp := e.remove("p1/x")
	require.Equal(t, StatusOK, resp.Status)
	assert.False(t, resp.Deleted)
	assert.Equal(t, uint64(1), resp.LinkCount)
	assert.Equal(t, uint64(1), e.linkCount(o))

	resp = e.remove("p2/y")
	require.Equal(t, StatusOK, resp.Status)
	assert.True(t, resp.Deleted)

	assert.False(t, e.exists("p2/y"))
	for _, id := range []object.ObjectID{o, pad.MetadataID, pad.AttributeID} {
		_, err := e.store.OpenRead(context.Background(), id, e.last)
		assert.ErrorIs(t, err, object.ErrObjectNotFound)
	}
}

func TestRemove_CountFollowsCreatesAndRemoves(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)

	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		require.Equal(t, StatusOK, e.createHard(n, o).Status)
	}
	assert.Equal(t, StatusExists, e.createHard("a", o).Status)
	assert.Equal(t, uint64(len(names)), e.linkCount(o))

	for i, n := range names[:len(names)-1] {
		require.Equal(t, StatusOK, e.remove(n).Status)
		assert.Equal(t, uint64(len(names)-i-1), e.linkCount(o))
	}
	assert.True(t, e.remove(names[len(names)-1]).Deleted)
}

func TestMove(t *testing.T) {
	e := newTestEnv(t)
	e.mkgroup("a")
	e.mkgroup("b")
	o, _ := e.provision(object.TypeDataset)
	e.createHard("a/o", o)

	require.Equal(t, StatusOK, e.move("a/o", "b/o", false).Status)
	assert.False(t, e.exists("a/o"))
	assert.True(t, e.exists("b/o"))
	assert.Equal(t, uint64(1), e.linkCount(o), "a move keeps the count")
}

func TestMove_Copy(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)
	e.createHard("o", o)
	e.createSoft("s", "o")

	require.Equal(t, StatusOK, e.move("o", "o2", true).Status)
	require.Equal(t, StatusOK, e.move("s", "s2", true).Status)
	assert.True(t, e.exists("o"))
	assert.True(t, e.exists("o2"))
	assert.True(t, e.exists("s2"))
	assert.Equal(t, uint64(2), e.linkCount(o), "a copy adds a reference")

	assert.False(t, e.remove("o").Deleted)
	assert.True(t, e.remove("o2").Deleted)
}

func TestMove_OntoItself(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)
	e.createHard("o", o)

	require.Equal(t, StatusOK, e.move("o", "./o", false).Status)
	assert.True(t, e.exists("o"))
	assert.Equal(t, uint64(1), e.linkCount(o))
}

func TestMove_Failures(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)
	e.createHard("o", o)
	e.createSoft("taken", "x")

	assert.Equal(t, StatusNotFound, e.move("missing", "new", false).Status)
	assert.Equal(t, StatusNotFound, e.move("o", "nope/new", false).Status)
	assert.Equal(t, StatusExists, e.move("o", "taken", false).Status)

	assert.True(t, e.exists("o"), "failed moves keep the source")
	assert.Equal(t, uint64(1), e.linkCount(o))
}

// requireUnwound checks that a failed move or copy of src to dst left the
// source in place with an unchanged count and no destination entry.
func (e *testEnv) requireUnwound(src, dst string, target object.ObjectID, count uint64) {
	e.t.Helper()
	e.faults.clear()
	assert.False(e.t, e.exists(dst), "destination entry withdrawn")
	assert.True(e.t, e.exists(src), "source kept")
	assert.Equal(e.t, count, e.linkCount(target))
	e.requireNoOpenHandles()
}

func TestMove_SourceRemovalFailureWithdrawsDestination(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)
	e.createHard("o", o)

	e.faults.failDelete("o")
	assert.Equal(t, StatusStoreFailure, e.move("o", "o2", false).Status)
	e.requireUnwound("o", "o2", o, 1)
}

func TestMove_CopyOpenTargetFailureWithdrawsDestination(t *testing.T) {
	e := newTestEnv(t)
	o, _ := e.provision(object.TypeDataset)
	e.createHard("o", o)

	e.faults.failOpenRead(o)
	assert.Equal(t, StatusStoreFailure, e.move("o", "o2", true).Status)
	e.requireUnwound("o", "o2", o, 1)
}

func TestMove_CopyIncrementFailureWithdrawsDestination(t *testing.T) {
	e := newTestEnv(t)
	o, pad := e.provision(object.TypeDataset)
	e.createHard("o", o)

	e.faults.failPut(pad.MetadataID)
	assert.Equal(t, StatusStoreFailure, e.move("o", "o2", true).Status)
	e.requireUnwound("o", "o2", o, 1)
}

func TestIterate_ChildWithSoftLink(t *testing.T) {
	e := newTestEnv(t)
	e.mkgroup("child")
	e.createSoft("child/s", "elsewhere")

	resp, err := e.handler.Iterate(e.ctx, &IterateRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt(""), Recursive: true})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status)
	e.requireNoOpenHandles()

	require.Len(t, resp.Records, 2)
	kinds := map[string]link.Kind{}
	for _, r := range resp.Records {
		kinds[r.Path] = r.Info.Kind
	}
	assert.Equal(t, map[string]link.Kind{"child": link.KindHard, "child/s": link.KindSoft}, kinds)
}

func TestIterate_UntypedBorrowedHandle(t *testing.T) {
	e := newTestEnv(t)
	g := e.mkgroup("g")
	e.createSoft("g/s", "x")

	rd, err := e.store.OpenRead(context.Background(), g, e.last)
	require.NoError(t, err)
	rd.Type = 0
	loc := Location{ID: g, Handles: object.Handles{Read: rd}}

	resp, err := e.handler.Iterate(e.ctx, &IterateRequest{Container: testContainer, ReadTx: e.last, Loc: loc})
	require.NoError(t, err)
	require.Equal(t, StatusOK, resp.Status, "an untyped handle is accepted like it is by path resolution")
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "s", resp.Records[0].Path)

	created, err := e.handler.Create(e.ctx, &CreateRequest{
		Container: testContainer,
		Tx:        e.nextTx(),
		Loc:       Location{ID: g, Handles: object.Handles{Read: rd}, Path: "s2"},
		Kind:      link.KindSoft,
		Value:     "y",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, created.Status)

	require.NoError(t, e.store.CloseHandle(rd))
	e.requireNoOpenHandles()
}

func TestIterate_Failures(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.provision(object.TypeDataset)
	e.createHard("d", id)

	iterate := func(path string) *IterateResponse {
		resp, err := e.handler.Iterate(e.ctx, &IterateRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt(path), Recursive: true})
		require.NoError(t, err)
		e.requireNoOpenHandles()
		return resp
	}

	assert.Equal(t, StatusNotFound, iterate("missing").Status)
	assert.Equal(t, StatusNotFound, iterate("d").Status, "datasets cannot be listed")
}

func TestIterate_PartialResultOnDanglingLink(t *testing.T) {
	e := newTestEnv(t)
	g := e.mkgroup("g")
	require.NoError(t, e.store.Unlink(context.Background(), g, e.nextTx().Write))

	resp, err := e.handler.Iterate(e.ctx, &IterateRequest{Container: testContainer, ReadTx: e.last, Loc: rootAt("."), Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, resp.Status)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "g", resp.Records[0].Path)
	e.requireNoOpenHandles()
}

func TestReadOnlyContainer(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterStore("mem", memory.NewStore()))
	require.NoError(t, reg.AddContainer(ctx, &registry.ContainerConfig{Name: "ro", Store: "mem", ReadOnly: true}))
	h := NewDefaultHandler(reg, Options{})
	rctx := &Context{Context: ctx}

	cr, err := h.Create(rctx, &CreateRequest{Container: "ro", Tx: object.Tx{Write: 2, Read: 1}, Loc: rootAt("s"), Kind: link.KindSoft, Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusReadOnly, cr.Status)

	rr, err := h.Remove(rctx, &RemoveRequest{Container: "ro", Tx: object.Tx{Write: 2, Read: 1}, Loc: rootAt("s")})
	require.NoError(t, err)
	assert.Equal(t, StatusReadOnly, rr.Status)

	ir, err := h.Iterate(rctx, &IterateRequest{Container: "ro", ReadTx: 1, Loc: rootAt("")})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, ir.Status, "reads are allowed")
}

func TestCancelledBeforeStart(t *testing.T) {
	e := newTestEnv(t)
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	rctx := &Context{Context: cctx}

	resp, err := e.handler.Remove(rctx, &RemoveRequest{Container: testContainer, Tx: e.nextTx(), Loc: rootAt("x")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, resp)
	assert.Equal(t, StatusCancelled, resp.Status)

	info, err := e.handler.GetInfo(rctx, &GetInfoRequest{Container: testContainer, Loc: rootAt("x")})
	assert.Error(t, err)
	assert.Equal(t, link.KindError, info.Info.Kind)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{&link.LinkError{Code: link.ErrNotFound}, StatusNotFound},
		{&link.LinkError{Code: link.ErrAlreadyExists}, StatusExists},
		{&link.LinkError{Code: link.ErrWrongLinkKind}, StatusWrongKind},
		{&link.LinkError{Code: link.ErrIntegrity}, StatusIntegrity},
		{&link.LinkError{Code: link.ErrStoreFailure}, StatusStoreFailure},
		{&link.LinkError{Code: link.ErrAllocation}, StatusNoMemory},
		{&link.LinkError{Code: link.ErrCorruptData}, StatusCorrupt},
		{&link.LinkError{Code: link.ErrInvalidArgument}, StatusInvalid},
		{&link.LinkError{Code: link.ErrLinkLoop}, StatusLoop},
		{registry.ErrReadOnly, StatusReadOnly},
		{context.Canceled, StatusCancelled},
		{object.ErrStoreClosed, StatusStoreFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapError(tt.err), "%v", tt.err)
	}
}
