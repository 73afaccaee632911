package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// ExistsRequest asks whether a link exists.
type ExistsRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// ReadTx is the snapshot the lookup reads.
	ReadTx object.TxID

	// Loc locates the link.
	Loc Location

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// ExistsResponse is the response to an EXISTS request.
type ExistsResponse struct {
	ResponseBase

	// Exists reports whether the link exists (and, for a hard link,
	// whether its target can be opened).
	Exists bool
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Exists reports whether the link at Loc exists.
//
// Unlike every other procedure, failures while resolving the path or
// looking up the link are not errors: they answer false with StatusOK. A
// hard link whose target cannot be opened also answers false. Soft links
// are not followed.
//
// Only an unknown container is reported through the status.
func (h *DefaultHandler) Exists(ctx *Context, req *ExistsRequest) (*ExistsResponse, error) {
	if err := ctx.cancelled(); err != nil {
		logger.Debug("EXISTS cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		return &ExistsResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Debug("EXISTS: path='%s' container=%s rtid=%d client=%s",
		req.Loc.Path, req.Container, req.ReadTx, ctx.ClientAddr)

	resp := &ExistsResponse{}

	c, err := h.container(req.Container, false)
	if err != nil {
		resp.Status = failure(ProcExists, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles)
	defer release(ProcExists, scope)

	resp.Status = StatusOK
	resp.Exists = h.exists(ctx, svc, scope, req)
	logger.Debug("EXISTS: path='%s' exists=%t", req.Loc.Path, resp.Exists)
	return resp, nil
}

func (h *DefaultHandler) exists(ctx *Context, svc *link.Service, scope *link.Scope, req *ExistsRequest) bool {
	res, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, object.Tx{Read: req.ReadTx}, false)
	if err != nil {
		logger.Debug("EXISTS: '%s' does not resolve: %v", req.Loc.Path, err)
		return false
	}

	l, err := svc.Links.Lookup(ctx.ctx(), res.Parent.Handles.Read, req.ReadTx, res.Name)
	if err != nil {
		return false
	}

	hard, ok := l.(link.Hard)
	if !ok {
		return true
	}

	rd, err := scope.OpenRead(ctx.ctx(), hard.Target, req.ReadTx)
	if err != nil {
		logger.Debug("EXISTS: '%s' is a dangling hard link to %s", req.Loc.Path, hard.Target)
		return false
	}
	_ = scope.Release(rd)
	return true
}
