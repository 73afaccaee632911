package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// IterateRequest asks for the links below a container.
type IterateRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// ReadTx is the snapshot the walk reads.
	ReadTx object.TxID

	// Loc locates the container to list. An empty path lists Loc.ID.
	Loc Location

	// Recursive descends into every hard-linked container.
	Recursive bool

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// IterateResponse is the response to an ITERATE request.
type IterateResponse struct {
	ResponseBase

	// Records are the links found, in pre-order and store order within a
	// container. Paths are relative to the listed container. On failure
	// Records holds what was gathered before the failure.
	Records []link.Record
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Iterate lists the links of the container at Loc, and with Recursive set,
// of every container reachable from it through hard links. A container
// reached again through a hard link while it is still being listed is
// reported but not entered a second time.
func (h *DefaultHandler) Iterate(ctx *Context, req *IterateRequest) (*IterateResponse, error) {
	if err := ctx.cancelled(); err != nil {
		logger.Debug("ITERATE cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		return &IterateResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Info("ITERATE: path='%s' recursive=%t container=%s rtid=%d client=%s",
		req.Loc.Path, req.Recursive, req.Container, req.ReadTx, ctx.ClientAddr)

	resp := &IterateResponse{}

	c, err := h.container(req.Container, false)
	if err != nil {
		resp.Status = failure(ProcIterate, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles)
	defer release(ProcIterate, scope)

	start, err := svc.Resolver.Open(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, req.ReadTx)
	if err != nil {
		resp.Status = failure(ProcIterate, "open", err, ctx.ClientAddr)
		return resp, nil
	}
	if !start.IsContainer() {
		err := &link.LinkError{Code: link.ErrNotFound, Message: start.Type().String() + " is not a container", Path: req.Loc.Path}
		resp.Status = failure(ProcIterate, "open", err, ctx.ClientAddr)
		return resp, nil
	}

	records, err := svc.Iterator.Iterate(ctx.ctx(), scope, start, req.ReadTx, req.Recursive)
	resp.Records = records
	h.Metrics.RecordIterated(req.Container, len(records))
	if err != nil {
		resp.Status = failure(ProcIterate, "walk", err, ctx.ClientAddr)
		logger.Debug("ITERATE: returning %d records gathered before the failure", len(records))
		return resp, nil
	}

	logger.Info("ITERATE successful: path='%s' records=%d client=%s", req.Loc.Path, len(records), ctx.ClientAddr)
	resp.Status = StatusOK
	return resp, nil
}
