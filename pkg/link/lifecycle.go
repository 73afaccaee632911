package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Lifecycle owns the link count of objects.
//
// Every object has a scratch pad naming two sub-objects: a metadata
// key-value store and an attribute key-value store. The metadata store
// holds link_count, the number of hard links to the object. The count
// lives beside the object, not in any directory entry, so hard links from
// different containers share it.
//
// An object is deleted, together with both sub-objects, exactly when its
// count drops from 1 to 0.
type Lifecycle struct {
	client object.Client
}

// NewLifecycle creates a lifecycle manager over client.
func NewLifecycle(client object.Client) *Lifecycle {
	return &Lifecycle{client: client}
}

// Provision creates object id of type typ with its metadata and attribute
// sub-objects, writes its checksummed scratch pad, and initializes its
// metadata with the given link count. Everything is written at wtid.
//
// If any step fails, the objects created so far are unlinked again.
func (l *Lifecycle) Provision(ctx context.Context, id object.ObjectID, typ object.ObjectType, linkCount uint64, wtid object.TxID) (pad ScratchPad, err error) {
	scope := NewScope(l.client)
	defer func() {
		err = errors.Join(err, scope.Close())
	}()

	pad = ScratchPad{
		MetadataID:  object.NewObjectID(),
		AttributeID: object.NewObjectID(),
	}

	var created []object.ObjectID
	defer func() {
		if err == nil {
			return
		}
		for _, oid := range created {
			if uerr := l.client.Unlink(ctx, oid, wtid); uerr != nil {
				logger.Warn("provision rollback: unlink %s failed: %v", oid, uerr)
			}
		}
	}()

	for _, obj := range []struct {
		id  object.ObjectID
		typ object.ObjectType
	}{
		{id, typ},
		{pad.MetadataID, object.TypeKV},
		{pad.AttributeID, object.TypeKV},
	} {
		if err := l.client.CreateObject(ctx, obj.id, obj.typ, wtid); err != nil {
			if errors.Is(err, object.ErrObjectExists) {
				return ScratchPad{}, &LinkError{Code: ErrAlreadyExists, Message: "object already exists", Path: obj.id.String(), Err: err}
			}
			return ScratchPad{}, storeError(err, "cannot create object", obj.id.String())
		}
		created = append(created, obj.id)
	}

	wr, err := scope.OpenWrite(ctx, id, wtid)
	if err != nil {
		return ScratchPad{}, storeError(err, "cannot open new object", id.String())
	}
	if err := l.client.SetScratch(ctx, wr, EncodeScratchPad(pad), wtid); err != nil {
		return ScratchPad{}, storeError(err, "cannot write scratch pad", id.String())
	}

	md, err := scope.OpenWrite(ctx, pad.MetadataID, wtid)
	if err != nil {
		return ScratchPad{}, storeError(err, "cannot open metadata", id.String())
	}
	if err := l.client.Put(ctx, md, keyLinkCount, encodeCount(linkCount), wtid); err != nil {
		return ScratchPad{}, storeError(err, "cannot write link count", id.String())
	}
	if err := l.client.Put(ctx, md, keyObjectType, []byte{byte(typ)}, wtid); err != nil {
		return ScratchPad{}, storeError(err, "cannot write object type", id.String())
	}

	logger.Debug("provisioned %s %s: metadata=%s attributes=%s links=%d",
		typ, id, pad.MetadataID, pad.AttributeID, linkCount)
	return pad, nil
}

// ReadScratchPad reads and decodes the scratch pad of the object behind h,
// verifying its checksum when scope requires it.
func (l *Lifecycle) ReadScratchPad(ctx context.Context, h object.Handle, rtid object.TxID, cs ChecksumScope) (ScratchPad, error) {
	data, err := l.client.GetScratch(ctx, h, rtid)
	if err != nil {
		return ScratchPad{}, storeError(err, "cannot read scratch pad", h.ID.String())
	}
	pad, err := DecodeScratchPad(data, cs)
	if err != nil {
		return ScratchPad{}, withPath(err, h.ID.String())
	}
	return pad, nil
}

// IncrementLinkCount adds one hard link to target and returns the new
// count.
//
// When known is non-nil its metadata ID is used directly and the scratch
// pad is not read; callers pass it when they already hold the object open
// and know its sub-objects. Handles on the metadata sub-object are
// released before returning.
func (l *Lifecycle) IncrementLinkCount(ctx context.Context, scope *Scope, target Node, known *ScratchPad, tx object.Tx, cs ChecksumScope) (uint64, error) {
	pad := known
	if pad == nil {
		p, err := l.ReadScratchPad(ctx, target.Handles.Read, tx.Read, cs)
		if err != nil {
			return 0, err
		}
		pad = &p
	}

	md, err := scope.OpenPair(ctx, pad.MetadataID, tx.Read)
	if err != nil {
		return 0, storeError(err, "cannot open metadata", target.ID.String())
	}
	defer scope.ReleasePair(md)

	count, err := l.readCount(ctx, md.Read, tx.Read, target.ID)
	if err != nil {
		return 0, err
	}

	count++
	if err := l.client.Put(ctx, md.Write, keyLinkCount, encodeCount(count), tx.Write); err != nil {
		return 0, storeError(err, "cannot write link count", target.ID.String())
	}

	logger.Debug("link count %s: %d -> %d (%s)", target.ID, count-1, count, tx)
	return count, nil
}

// DecrementAndMaybeDelete removes one hard link from object id.
//
// If the count stays positive the new count is written. If it reaches
// zero the object, its metadata sub-object and its attribute sub-object
// are unlinked; all three unlinks are attempted and their failures are
// joined into one ErrStoreFailure. Metadata handles are released before
// any unlink.
//
// Returns whether the object was deleted and the remaining count.
func (l *Lifecycle) DecrementAndMaybeDelete(ctx context.Context, scope *Scope, id object.ObjectID, tx object.Tx, cs ChecksumScope) (bool, uint64, error) {
	rd, err := scope.OpenRead(ctx, id, tx.Read)
	if err != nil {
		return false, 0, storeError(err, "cannot open link target", id.String())
	}
	pad, err := l.ReadScratchPad(ctx, rd, tx.Read, cs)
	_ = scope.Release(rd)
	if err != nil {
		return false, 0, err
	}

	md, err := scope.OpenPair(ctx, pad.MetadataID, tx.Read)
	if err != nil {
		return false, 0, storeError(err, "cannot open metadata", id.String())
	}

	count, err := l.readCount(ctx, md.Read, tx.Read, id)
	if err != nil {
		_ = scope.ReleasePair(md)
		return false, 0, err
	}
	if count == 0 {
		_ = scope.ReleasePair(md)
		return false, 0, newError(ErrCorruptData, "link count is already zero", id.String())
	}

	count--
	if count > 0 {
		err := l.client.Put(ctx, md.Write, keyLinkCount, encodeCount(count), tx.Write)
		_ = scope.ReleasePair(md)
		if err != nil {
			return false, 0, storeError(err, "cannot write link count", id.String())
		}
		logger.Debug("link count %s: %d -> %d (%s)", id, count+1, count, tx)
		return false, count, nil
	}

	_ = scope.ReleasePair(md)

	var errs []error
	for _, oid := range []object.ObjectID{id, pad.MetadataID, pad.AttributeID} {
		if err := l.client.Unlink(ctx, oid, tx.Write); err != nil {
			errs = append(errs, fmt.Errorf("unlink %s: %w", oid, err))
		}
	}
	if len(errs) > 0 {
		return true, 0, &LinkError{
			Code:    ErrStoreFailure,
			Message: "object deletion incomplete",
			Path:    id.String(),
			Err:     errors.Join(errs...),
		}
	}

	logger.Debug("deleted %s with metadata=%s attributes=%s (%s)", id, pad.MetadataID, pad.AttributeID, tx)
	return true, 0, nil
}

// LinkCount returns the link count of id at rtid.
func (l *Lifecycle) LinkCount(ctx context.Context, id object.ObjectID, rtid object.TxID, cs ChecksumScope) (count uint64, err error) {
	scope := NewScope(l.client)
	defer func() {
		err = errors.Join(err, scope.Close())
	}()

	rd, err := scope.OpenRead(ctx, id, rtid)
	if err != nil {
		return 0, storeError(err, "cannot open object", id.String())
	}
	pad, err := l.ReadScratchPad(ctx, rd, rtid, cs)
	if err != nil {
		return 0, err
	}

	md, err := scope.OpenRead(ctx, pad.MetadataID, rtid)
	if err != nil {
		return 0, storeError(err, "cannot open metadata", id.String())
	}
	return l.readCount(ctx, md, rtid, id)
}

func (l *Lifecycle) readCount(ctx context.Context, md object.Handle, rtid object.TxID, owner object.ObjectID) (uint64, error) {
	data, err := l.client.Get(ctx, md, keyLinkCount, rtid)
	if err != nil {
		return 0, storeError(err, "cannot read link count", owner.String())
	}
	count, err := decodeCount(data)
	if err != nil {
		return 0, withPath(err, owner.String())
	}
	return count, nil
}
