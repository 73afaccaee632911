package handlers

import (
	"fmt"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// GetValueRequest asks for the value of a soft link.
type GetValueRequest struct {
	// Container is the registry name of the container the request runs in.
	Container string

	// ReadTx is the snapshot the lookup reads.
	ReadTx object.TxID

	// Loc locates the link.
	Loc Location

	// Length is the size of the caller's buffer. The value returned is
	// truncated to it.
	Length uint64

	// ChecksumScope selects which checksums are verified.
	ChecksumScope link.ChecksumScope
}

// GetValueResponse is the response to a GETVALUE request.
type GetValueResponse struct {
	ResponseBase

	// Value holds at most Length bytes of the target path followed by its
	// NUL terminator.
	Value []byte

	// ValueSize is the full size of the stored value, terminator included.
	ValueSize uint64
}

// ============================================================================
// Protocol Handler
// ============================================================================

// GetValue reads the target path of the soft link at Loc.
//
// **Errors:**
//   - StatusNoMemory: Length exceeds the configured maximum value length
//   - StatusWrongKind: the link is a hard link
//   - StatusNotFound: the path or the link does not exist
func (h *DefaultHandler) GetValue(ctx *Context, req *GetValueRequest) (*GetValueResponse, error) {
	if err := ctx.cancelled(); err != nil {
		logger.Debug("GETVALUE cancelled before processing: path='%s' client=%s error=%v",
			req.Loc.Path, ctx.ClientAddr, err)
		return &GetValueResponse{ResponseBase: ResponseBase{Status: StatusCancelled}}, err
	}

	logger.Debug("GETVALUE: path='%s' length=%d container=%s rtid=%d client=%s",
		req.Loc.Path, req.Length, req.Container, req.ReadTx, ctx.ClientAddr)

	resp := &GetValueResponse{}

	// ========================================================================
	// Step 1: Size the response buffer
	// ========================================================================

	if req.Length > h.MaxValueLength {
		err := &link.LinkError{
			Code:    link.ErrAllocation,
			Message: fmt.Sprintf("requested %d bytes, limit is %d", req.Length, h.MaxValueLength),
			Path:    req.Loc.Path,
		}
		resp.Status = failure(ProcGetValue, "allocate", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 2: Resolve and look up the link
	// ========================================================================

	c, err := h.container(req.Container, false)
	if err != nil {
		resp.Status = failure(ProcGetValue, "container", err, ctx.ClientAddr)
		return resp, nil
	}

	svc := c.Service
	scope := svc.NewScope(req.Loc.Handles)
	defer release(ProcGetValue, scope)

	res, err := svc.Resolver.Resolve(ctx.ctx(), scope, req.Loc.start(), req.Loc.Path, object.Tx{Read: req.ReadTx}, false)
	if err != nil {
		resp.Status = failure(ProcGetValue, "resolve", err, ctx.ClientAddr)
		return resp, nil
	}

	l, err := svc.Links.Lookup(ctx.ctx(), res.Parent.Handles.Read, req.ReadTx, res.Name)
	if err != nil {
		resp.Status = failure(ProcGetValue, "lookup", err, ctx.ClientAddr)
		return resp, nil
	}

	soft, ok := l.(link.Soft)
	if !ok {
		err := &link.LinkError{Code: link.ErrWrongLinkKind, Message: "not a soft link", Path: req.Loc.Path}
		resp.Status = failure(ProcGetValue, "lookup", err, ctx.ClientAddr)
		return resp, nil
	}

	// ========================================================================
	// Step 3: Copy the value
	// ========================================================================

	value := soft.Value()
	n := min(uint64(len(value)), req.Length)

	resp.Status = StatusOK
	resp.Value = value[:n]
	resp.ValueSize = uint64(len(value))
	logger.Debug("GETVALUE: path='%s' value='%s' returned=%d/%d", req.Loc.Path, soft.Target, n, len(value))
	return resp, nil
}
