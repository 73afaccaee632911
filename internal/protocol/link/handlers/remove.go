package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// RemoveRequest asks for a link to be deleted.
type RemoveRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// Tx is the write and read transaction of the request.
	Tx object.Tx

	// Loc locates the link.
	Loc Location

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// RemoveResponse is the response to a REMOVE request.
type RemoveResponse struct {
	ResponseBase

	// Deleted reports that the link was the last hard link to its target
	// and the target was deleted.
	Deleted bool

	// LinkCount is the target's remaining link count (hard links only).
	LinkCount uint64
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Remove deletes the link at Loc.
//
// **Process:**
//
//  1. Look up the container and check that it accepts writes
//  2. Resolve the parent container (opened for writing)
//  3. Look up the link
//  4. Delete the directory entry
//  5. For a hard link, decrement the target's link count; when it reaches
//     zero the target and its metadata and attribute sub-objects are
//     deleted
//
// A failure in step 5 is reported even though the entry is already gone:
// the request still gets exactly one response, with the failure status.
func (h *DefaultHandler) Remove(ctx *Context, req *RemoveRequest) (*RemoveResponse, error) {
	if err := ctx.cancelled(); err != nil {
		logger.Debug("REMOVE cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		return &RemoveResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Info("REMOVE: path='%s' container=%s tx=%s client=%s",
		req.Loc.Path, req.Container, req.Tx, ctx.ClientAddr)

	resp := &RemoveResponse{}

	// ========================================================================
	// Step 1: Find the container
	// ========================================================================

	c, err := h.container(req.Container, true)
	if err != nil {
		resp.Status = failure(ProcRemove, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles)
	defer release(ProcRemove, scope)

	// ========================================================================
	// Step 2: Resolve the parent container
	// ========================================================================

	res, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, req.Tx, true)
	if err != nil {
		resp.Status = failure(ProcRemove, "resolve", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 3: Look up the link
	// ========================================================================

	l, err := svc.Links.Lookup(ctx.ctx(), res.Parent.Handles.Read, req.Tx.Read, res.Name)
	if err != nil {
		resp.Status = failure(ProcRemove, "lookup", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 4: Delete the directory entry
	// ========================================================================

	if err := svc.Links.Remove(ctx.ctx(), res.Parent.Handles.Write, req.Tx.Write, res.Name); err != nil {
		resp.Status = failure(ProcRemove, "remove", err, ctx.ClientAddr)
		return resp, nil
	}

	hard, ok := l.(link.Hard)
	if !ok {
		logger.Info("REMOVE successful: soft link '%s' client=%s", req.Loc.Path, ctx.ClientAddr)
		resp.Status = StatusOK
		return resp, nil
	}

	// ========================================================================
	// Step 5: Drop the reference
	// ========================================================================

	deleted, remaining, err := svc.Lifecycle.DecrementAndMaybeDelete(ctx.ctx(), scope, hard.Target, req.Tx, req.ChecksumScope)
	if err != nil {
		resp.Status = failure(ProcRemove, "decrement link count", err, ctx.ClientAddr)
		resp.Deleted = deleted
		return resp, nil
	}
	h.Metrics.RecordLinkCountChange(req.Container, "decrement")
	if deleted {
		h.Metrics.RecordObjectDeleted(req.Container)
	}

	logger.Info("REMOVE successful: hard link '%s' -> %s links=%d deleted=%t client=%s",
		req.Loc.Path, hard.Target, remaining, deleted, ctx.ClientAddr)

	resp.Status = StatusOK
	resp.Deleted = deleted
	resp.LinkCount = remaining
	return resp, nil
}
