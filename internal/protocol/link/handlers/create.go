package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// CreateRequest asks for a new link.
//
// The last component of Loc.Path is the new link's name; the components
// before it name the container that will hold it.
type CreateRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// Tx is the write and read transaction of the request.
	Tx object.Tx

	// Loc locates the new link.
	Loc Location

	// Kind selects a hard or a soft link.
	Kind link.Kind

	// Target is the object a hard link will point to: Target.Path resolved
	// from Target.ID, or Target.ID itself when the path is empty. Ignored
	// for soft links.
	//
	// When Target.Path is empty and Target.MetadataID is set, the metadata
	// sub-object is used directly instead of reading the scratch pad.
	Target Location

	// Value is the symbolic target of a soft link. Ignored for hard links.
	Value string

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// CreateResponse is the response to a CREATE request.
type CreateResponse struct {
	ResponseBase

	// LinkCount is the target's link count after a hard link was created.
	LinkCount uint64
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Create inserts a link.
//
// **Process:**
//
//  1. Look up the container and check that it accepts writes
//  2. Resolve the container that will hold the link (opened for writing)
//  3. For a hard link, open the target object
//  4. Insert the directory entry
//  5. For a hard link, increment the target's link count
//
// A soft link is only a directory entry: its target is not checked and no
// link count changes. If the link count cannot be incremented, the entry
// inserted in step 4 is removed again so the link never exists uncounted.
//
// **Returns:**
//   - *CreateResponse: always non-nil
//   - error: only if ctx was cancelled before processing started
func (h *DefaultHandler) Create(ctx *Context, req *CreateRequest) (*CreateResponse, error) {
	if err := ctx.cancelled(); err != nil {
		logger.Debug("CREATE cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		return &CreateResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Info("CREATE: path='%s' kind=%s container=%s tx=%s client=%s",
		req.Loc.Path, req.Kind, req.Container, req.Tx, ctx.ClientAddr)

	resp := &CreateResponse{}

	// ========================================================================
	// Step 1: Find the container
	// ========================================================================

	c, err := h.container(req.Container, true)
	if err != nil {
		resp.Status = failure(ProcCreate, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	var l link.Link
	switch req.Kind {
	case link.KindHard:
	case link.KindSoft:
		l = link.Soft{Target: req.Value}
	default:
		resp.Status = StatusInvalid
		logger.Warn("CREATE failed: unsupported link kind %s client=%s", req.Kind, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles, req.Target.Handles)
	defer release(ProcCreate, scope)

	// ========================================================================
	// Step 2: Resolve the parent container
	// ========================================================================

	res, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, req.Tx, true)
	if err != nil {
		resp.Status = failure(ProcCreate, "resolve", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 3: Open the hard link target
	// ========================================================================

	var target link.Node
	if req.Kind == link.KindHard {
		target, err = svc.Resolver.Open(ctx.ctx(), scope, req.Target.start(), req.Target.Path, req.Tx.Read)
		if err != nil {
			resp.Status = failure(ProcCreate, "open target", err, ctx.ClientAddr)
			return resp, nil
		}
		l = link.Hard{Target: target.ID}
	}

	// ========================================================================
	// Step 4: Insert the directory entry
	// ========================================================================

	if err := svc.Links.Insert(ctx.ctx(), res.Parent.Handles.Write, req.Tx.Write, res.Name, l); err != nil {
		resp.Status = failure(ProcCreate, "insert", err, ctx.ClientAddr)
		return resp, nil
	}

	if req.Kind == link.KindSoft {
		logger.Info("CREATE successful: soft link '%s' -> '%s' client=%s", req.Loc.Path, req.Value, ctx.ClientAddr)
		resp.Status = StatusOK
		return resp, nil
	}

	// ========================================================================
	// Step 5: Count the new hard link
	// ========================================================================
	// A caller that holds the target open and knows its metadata
	// sub-object spares the scratch pad read.

	var known *link.ScratchPad
	if req.Target.Path == "" && target.ID == req.Target.ID && req.Target.MetadataID != (object.ObjectID{}) {
		known = &link.ScratchPad{MetadataID: req.Target.MetadataID}
	}

	count, err := svc.Lifecycle.IncrementLinkCount(ctx.ctx(), scope, target, known, req.Tx, req.ChecksumScope)
	if err != nil {
		resp.Status = failure(ProcCreate, "increment link count", err, ctx.ClientAddr)
		if rerr := svc.Links.Remove(ctx.ctx(), res.Parent.Handles.Write, req.Tx.Write, res.Name); rerr != nil {
			logger.Error("CREATE: failed to withdraw uncounted link '%s': %v", req.Loc.Path, rerr)
		}
		return resp, nil
	}
	h.Metrics.RecordLinkCountChange(req.Container, "increment")

	logger.Info("CREATE successful: hard link '%s' -> %s links=%d client=%s",
		req.Loc.Path, target.ID, count, ctx.ClientAddr)

	resp.Status = StatusOK
	resp.LinkCount = count
	return resp, nil
}
