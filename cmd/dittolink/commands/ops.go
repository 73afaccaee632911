package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittolink/internal/logger"
	protocol "github.com/marmos91/dittolink/internal/protocol/link"
	"github.com/marmos91/dittolink/internal/protocol/link/handlers"
	"github.com/marmos91/dittolink/pkg/gc"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Mutations
// ============================================================================

// mkobj provisions a new object of type typ and links it at path.
//
// Provisioning and linking run in two epochs: the link request opens its
// target at the read snapshot, which must already hold the object. If
// linking fails the unlinked object is removed in a third epoch.
func (s *session) mkobj(ctx context.Context, path string, typ object.ObjectType) (object.ObjectID, error) {
	s.gcMu.RLock()
	defer s.gcMu.RUnlock()

	id := object.NewObjectID()
	svc, err := s.service()
	if err != nil {
		return id, err
	}

	var pad link.ScratchPad
	err = s.write(ctx, func(tx object.Tx) error {
		pad, err = svc.Lifecycle.Provision(ctx, id, typ, 0, tx.Write)
		return err
	})
	if err != nil {
		return id, fmt.Errorf("provision %s: %w", typ, err)
	}

	linkErr := s.write(ctx, func(tx object.Tx) error {
		resp := s.call(ctx, protocol.ProcCreate, &handlers.CreateRequest{
			Container:     s.container,
			Tx:            tx,
			Loc:           at(path),
			Kind:          link.KindHard,
			Target:        handlers.Location{ID: id, MetadataID: pad.MetadataID},
			ChecksumScope: s.checksum,
		})
		return check(handlers.ProcCreate, path, resp)
	})
	if linkErr == nil {
		return id, nil
	}

	cleanupErr := s.write(ctx, func(tx object.Tx) error {
		var errs []error
		for _, sub := range []object.ObjectID{pad.MetadataID, pad.AttributeID, id} {
			errs = append(errs, s.store.Unlink(ctx, sub, tx.Write))
		}
		return errors.Join(errs...)
	})
	if cleanupErr != nil {
		logger.Warn("failed to remove unlinked object %s: %v", id, cleanupErr)
	}
	return id, linkErr
}

// hardlink links path to the object target resolves to.
func (s *session) hardlink(ctx context.Context, target, path string) (uint64, error) {
	var count uint64
	err := s.write(ctx, func(tx object.Tx) error {
		resp := s.call(ctx, protocol.ProcCreate, &handlers.CreateRequest{
			Container:     s.container,
			Tx:            tx,
			Loc:           at(path),
			Kind:          link.KindHard,
			Target:        at(target),
			ChecksumScope: s.checksum,
		})
		if r, ok := resp.(*handlers.CreateResponse); ok {
			count = r.LinkCount
		}
		return check(handlers.ProcCreate, path, resp)
	})
	return count, err
}

// symlink creates a soft link at path holding value.
func (s *session) symlink(ctx context.Context, value, path string) error {
	return s.write(ctx, func(tx object.Tx) error {
		resp := s.call(ctx, protocol.ProcCreate, &handlers.CreateRequest{
			Container:     s.container,
			Tx:            tx,
			Loc:           at(path),
			Kind:          link.KindSoft,
			Value:         value,
			ChecksumScope: s.checksum,
		})
		return check(handlers.ProcCreate, path, resp)
	})
}

// move moves (or with isCopy, copies) the link at src to dst.
func (s *session) move(ctx context.Context, src, dst string, isCopy bool) error {
	return s.write(ctx, func(tx object.Tx) error {
		resp := s.call(ctx, protocol.ProcMove, &handlers.MoveRequest{
			Container:     s.container,
			Tx:            tx,
			Src:           at(src),
			Dst:           at(dst),
			Copy:          isCopy,
			ChecksumScope: s.checksum,
		})
		return check(handlers.ProcMove, src, resp)
	})
}

// remove deletes the link at path.
func (s *session) remove(ctx context.Context, path string) (*handlers.RemoveResponse, error) {
	var out *handlers.RemoveResponse
	err := s.write(ctx, func(tx object.Tx) error {
		resp := s.call(ctx, protocol.ProcRemove, &handlers.RemoveRequest{
			Container:     s.container,
			Tx:            tx,
			Loc:           at(path),
			ChecksumScope: s.checksum,
		})
		out, _ = resp.(*handlers.RemoveResponse)
		return check(handlers.ProcRemove, path, resp)
	})
	return out, err
}

// ============================================================================
// Queries
// ============================================================================

// exists reports whether a link exists at path.
func (s *session) exists(ctx context.Context, path string) (bool, error) {
	rtid, err := s.readTx(ctx)
	if err != nil {
		return false, err
	}
	resp := s.call(ctx, protocol.ProcExists, &handlers.ExistsRequest{
		Container:     s.container,
		ReadTx:        rtid,
		Loc:           at(path),
		ChecksumScope: s.checksum,
	})
	if err := check(handlers.ProcExists, path, resp); err != nil {
		return false, err
	}
	r, _ := resp.(*handlers.ExistsResponse)
	return r != nil && r.Exists, nil
}

// info describes the link at path.
func (s *session) info(ctx context.Context, path string) (link.Info, error) {
	rtid, err := s.readTx(ctx)
	if err != nil {
		return link.ErrorInfo, err
	}
	resp := s.call(ctx, protocol.ProcGetInfo, &handlers.GetInfoRequest{
		Container:     s.container,
		ReadTx:        rtid,
		Loc:           at(path),
		ChecksumScope: s.checksum,
	})
	if err := check(handlers.ProcGetInfo, path, resp); err != nil {
		return link.ErrorInfo, err
	}
	return resp.(*handlers.GetInfoResponse).Info, nil
}

// readlink returns up to length bytes of the soft link value at path and
// the value's full size.
func (s *session) readlink(ctx context.Context, path string, length uint64) ([]byte, uint64, error) {
	rtid, err := s.readTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	resp := s.call(ctx, protocol.ProcGetValue, &handlers.GetValueRequest{
		Container:     s.container,
		ReadTx:        rtid,
		Loc:           at(path),
		Length:        length,
		ChecksumScope: s.checksum,
	})
	if err := check(handlers.ProcGetValue, path, resp); err != nil {
		return nil, 0, err
	}
	r := resp.(*handlers.GetValueResponse)
	return r.Value, r.ValueSize, nil
}

// list returns the links below path.
//
// On failure the records gathered before the failure are returned with the
// error.
func (s *session) list(ctx context.Context, path string, recursive bool) ([]link.Record, error) {
	rtid, err := s.readTx(ctx)
	if err != nil {
		return nil, err
	}
	resp := s.call(ctx, protocol.ProcIterate, &handlers.IterateRequest{
		Container:     s.container,
		ReadTx:        rtid,
		Loc:           at(path),
		Recursive:     recursive,
		ChecksumScope: s.checksum,
	})
	var records []link.Record
	if r, ok := resp.(*handlers.IterateResponse); ok {
		records = r.Records
	}
	return records, check(handlers.ProcIterate, path, resp)
}

// linkCount reads the link count of id.
func (s *session) linkCount(ctx context.Context, id object.ObjectID) (uint64, error) {
	svc, err := s.service()
	if err != nil {
		return 0, err
	}
	rtid, err := s.readTx(ctx)
	if err != nil {
		return 0, err
	}
	return svc.Lifecycle.LinkCount(ctx, id, rtid, s.checksum)
}

// newCollector builds an orphan collector over the container. dryRun forces
// a dry run regardless of gc.dry_run; only dry runs are allowed on a
// read-only container.
func (s *session) newCollector(dryRun bool) (*gc.Collector, error) {
	dryRun = dryRun || s.cfg.GC.DryRun
	if !dryRun {
		if err := s.registry.CheckWritable(s.container); err != nil {
			return nil, err
		}
	}
	svc, err := s.service()
	if err != nil {
		return nil, err
	}
	return gc.NewCollector(s.store, svc, s.collectEpoch, gc.Config{
		Enabled:       s.cfg.GC.Enabled,
		Interval:      s.cfg.GC.Interval,
		BatchSize:     s.cfg.GC.BatchSize,
		DryRun:        dryRun,
		ChecksumScope: s.checksum,
	})
}

// collectEpoch runs a collection in its own write epoch once no object is
// waiting for its link.
func (s *session) collectEpoch(ctx context.Context, fn func(tx object.Tx) error) error {
	s.gcMu.Lock()
	defer s.gcMu.Unlock()
	return s.write(ctx, fn)
}

func (s *session) service() (*link.Service, error) {
	c, err := s.registry.GetContainer(s.container)
	if err != nil {
		return nil, err
	}
	return c.Service, nil
}
