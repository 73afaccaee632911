package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// GetInfoRequest asks for the kind and target of a link.
type GetInfoRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// ReadTx is the snapshot the lookup reads.
	ReadTx object.TxID

	// Loc locates the link.
	Loc Location

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// GetInfoResponse is the response to a GETINFO request.
type GetInfoResponse struct {
	ResponseBase

	// Info describes the link. On failure it is link.ErrorInfo (kind
	// Error); check Status first.
	Info link.Info
}

// ============================================================================
// Protocol Handler
// ============================================================================

// GetInfo returns the kind of the link at Loc together with its target
// object (hard) or the size of its value including the terminator (soft).
func (h *DefaultHandler) GetInfo(ctx *Context, req *GetInfoRequest) (*GetInfoResponse, error) {
	resp := &GetInfoResponse{Info: link.ErrorInfo}

	if err := ctx.cancelled(); err != nil {
		logger.Debug("GETINFO cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		resp.Status = StatusCancelled
		return resp, err
	}

	logger.Debug("GETINFO: path='%s' container=%s rtid=%d client=%s",
		req.Loc.Path, req.Container, req.ReadTx, ctx.ClientAddr)

	c, err := h.container(req.Container, false)
	if err != nil {
		resp.Status = failure(ProcGetInfo, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles)
	defer release(ProcGetInfo, scope)

	res, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, object.Tx{Read: req.ReadTx}, false)
	if err != nil {
		resp.Status = failure(ProcGetInfo, "resolve", err, ctx.ClientAddr)
		return resp, nil
	}

	l, err := svc.Links.Lookup(ctx.ctx(), res.Parent.Handles.Read, req.ReadTx, res.Name)
	if err != nil {
		resp.Status = failure(ProcGetInfo, "lookup", err, ctx.ClientAddr)
		return resp, nil
	}

	resp.Status = StatusOK
	resp.Info = l.Info()
	logger.Debug("GETINFO: path='%s' %s", req.Loc.Path, l)
	return resp, nil
}
