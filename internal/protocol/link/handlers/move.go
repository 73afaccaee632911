package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// MoveRequest relocates or copies a link.
type MoveRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// Tx is the write and read transaction of the request.
	Tx object.Tx

	// Src locates the existing link.
	Src Location

	// Dst locates the new link; its last path component is the new name.
	Dst Location

	// Copy keeps the source link in place.
	Copy bool

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// MoveResponse is the response to a MOVE request.
type MoveResponse struct {
	ResponseBase
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Move relocates the link at Src to Dst, or copies it when req.Copy is set.
//
// **Process:**
//
//  1. Look up the container and check that it accepts writes
//  2. Resolve the source and destination containers
//  3. Look up the source link
//  4. Insert an identical link at the destination
//  5. Move: remove the source entry. Copy of a hard link: increment the
//     target's link count
//
// **Link counts:**
//
// Moving a hard link leaves the number of references unchanged, so the
// target's link count is not touched. A copy adds a reference and counts
// it. Moving a link onto itself (same container and name) succeeds without
// changes.
//
// If step 5 fails, the destination entry is removed again so that neither
// a duplicated nor an uncounted link remains.
//
// **Returns:**
//   - *MoveResponse: always non-nil
//   - error: only if ctx was cancelled before processing started
func (h *DefaultHandler) Move(ctx *Context, req *MoveRequest) (*MoveResponse, error) {
	procedure := ProcMove
	if req.Copy {
		procedure = "COPY"
	}

	if err := ctx.cancelled(); err != nil {
		logger.Debug("%s cancelled before processing: src='%s' dst='%s' client=%s error=%v",
			procedure, req.Src.Path, req.Dst.Path, ctx.ClientAddr, err)
		return &MoveResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Info("%s: src='%s' dst='%s' container=%s tx=%s client=%s",
		procedure, req.Src.Path, req.Dst.Path, req.Container, req.Tx, ctx.ClientAddr)

	resp := &MoveResponse{}

	// ========================================================================
	// Step 1: Find the container
	// ========================================================================

	c, err := h.container(req.Container, true)
	if err != nil {
		resp.Status = failure(procedure, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Src.Handles, req.Dst.Handles)
	defer release(procedure, scope)

	// ========================================================================
	// Step 2: Resolve both parents
	// ========================================================================
	// The source container is only written to by a move.

	src, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Src.start(), req.Src.Path, req.Tx, !req.Copy)
	if err != nil {
		resp.Status = failure(procedure, "resolve source", err, ctx.ClientAddr)
		return resp, nil
	}

	dst, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Dst.start(), req.Dst.Path, req.Tx, true)
	if err != nil {
		resp.Status = failure(procedure, "resolve destination", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 3: Look up the source link
	// ========================================================================

	l, err := svc.Links.Lookup(ctx.ctx(), src.Parent.Handles.Read, req.Tx.Read, src.Name)
	if err != nil {
		resp.Status = failure(procedure, "lookup", err, ctx.ClientAddr)
		return resp, nil
	}

	if !req.Copy && src.Parent.ID == dst.Parent.ID && src.Name == dst.Name {
		logger.Debug("MOVE: '%s' onto itself, nothing to do", req.Src.Path)
		resp.Status = StatusOK
		return resp, nil
	}

	// ========================================================================
	// Step 4: Insert at the destination
	// ========================================================================

	if err := svc.Links.Insert(ctx.ctx(), dst.Parent.Handles.Write, req.Tx.Write, dst.Name, l); err != nil {
		resp.Status = failure(procedure, "insert", err, ctx.ClientAddr)
		return resp, nil
	}

	// unwind withdraws the destination entry after a later step failed.
	unwind := func() {
		if err := svc.Links.Remove(ctx.ctx(), dst.Parent.Handles.Write, req.Tx.Write, dst.Name); err != nil {
			logger.Error("%s: failed to withdraw destination '%s': %v", procedure, req.Dst.Path, err)
		}
	}

	// ========================================================================
	// Step 5: Remove the source, or count the copy
	// ========================================================================

	if !req.Copy {
		if err := svc.Links.Remove(ctx.ctx(), src.Parent.Handles.Write, req.Tx.Write, src.Name); err != nil {
			resp.Status = failure(procedure, "remove source", err, ctx.ClientAddr)
			unwind()
			return resp, nil
		}

		logger.Info("MOVE successful: '%s' -> '%s' (%s) client=%s", req.Src.Path, req.Dst.Path, l, ctx.ClientAddr)
		resp.Status = StatusOK
		return resp, nil
	}

	if hard, ok := l.(link.Hard); ok {
		rd, err := scope.OpenRead(ctx.ctx(), hard.Target, req.Tx.Read)
		if err != nil {
			resp.Status = failure(procedure, "open target", storeError(err, hard.Target), ctx.ClientAddr)
			unwind()
			return resp, nil
		}
		target := link.Node{ID: hard.Target, Handles: object.Handles{Read: rd}}

		count, err := svc.Lifecycle.IncrementLinkCount(ctx.ctx(), scope, target, nil, req.Tx, req.ChecksumScope)
		_ = scope.Release(rd)
		if err != nil {
			resp.Status = failure(procedure, "increment link count", err, ctx.ClientAddr)
			unwind()
			return resp, nil
		}
		h.Metrics.RecordLinkCountChange(req.Container, "increment")
		logger.Debug("COPY: %s now has %d links", hard.Target, count)
	}

	logger.Info("COPY successful: '%s' -> '%s' (%s) client=%s", req.Src.Path, req.Dst.Path, l, ctx.ClientAddr)
	resp.Status = StatusOK
	return resp, nil
}
