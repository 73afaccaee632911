package handlers

import (
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/metrics"
	"github.com/marmos91/dittolink/pkg/registry"
)

// Procedure names, used in logs, metrics and dispatch.
const (
	ProcCreate   = "CREATE"
	ProcMove     = "MOVE"
	ProcExists   = "EXISTS"
	ProcGetInfo  = "GETINFO"
	ProcGetValue = "GETVALUE"
	ProcRemove   = "REMOVE"
	ProcIterate  = "ITERATE"
)

// DefaultMaxValueLength bounds the buffer GETVALUE may be asked to fill.
const DefaultMaxValueLength = 1 << 20

// Handler serves link requests.
//
// Every method returns a non-nil response. Failures are reported through
// the response Status; the error return is non-nil only when the request
// was cancelled before it started. Handles opened while serving a request
// are closed before the method returns, whatever the outcome; handles the
// caller supplied are left open.
type Handler interface {
	// Create inserts a hard or soft link.
	Create(ctx *Context, req *CreateRequest) (*CreateResponse, error)

	// Move relocates a link, or copies it when req.Copy is set.
	Move(ctx *Context, req *MoveRequest) (*MoveResponse, error)

	// Exists reports whether a link exists. Lookup failures read as false.
	Exists(ctx *Context, req *ExistsRequest) (*ExistsResponse, error)

	// GetInfo returns the kind and target of a link.
	GetInfo(ctx *Context, req *GetInfoRequest) (*GetInfoResponse, error)

	// GetValue reads the target path of a soft link.
	GetValue(ctx *Context, req *GetValueRequest) (*GetValueResponse, error)

	// Remove deletes a link, deleting its target when it was the last
	// hard link.
	Remove(ctx *Context, req *RemoveRequest) (*RemoveResponse, error)

	// Iterate lists the links below a container.
	Iterate(ctx *Context, req *IterateRequest) (*IterateResponse, error)
}

// Options tunes a DefaultHandler.
type Options struct {
	// MaxValueLength is the largest GETVALUE buffer accepted
	// (0 = DefaultMaxValueLength).
	MaxValueLength uint64

	// Metrics receives lifecycle events (nil = no metrics).
	Metrics metrics.LinkMetrics
}

// DefaultHandler serves requests against the containers of a registry.
type DefaultHandler struct {
	Registry       *registry.Registry
	MaxValueLength uint64
	Metrics        metrics.LinkMetrics
}

var _ Handler = (*DefaultHandler)(nil)

// NewDefaultHandler creates a handler over reg.
func NewDefaultHandler(reg *registry.Registry, opts Options) *DefaultHandler {
	if opts.MaxValueLength == 0 {
		opts.MaxValueLength = DefaultMaxValueLength
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopLinkMetrics()
	}
	return &DefaultHandler{
		Registry:       reg,
		MaxValueLength: opts.MaxValueLength,
		Metrics:        opts.Metrics,
	}
}

// container returns the named container, checking that it accepts writes
// when write is set.
func (h *DefaultHandler) container(name string, write bool) (*registry.Container, error) {
	c, err := h.Registry.GetContainer(name)
	if err != nil {
		return nil, &link.LinkError{Code: link.ErrNotFound, Message: "unknown container", Path: name, Err: err}
	}
	if write {
		if err := h.Registry.CheckWritable(name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// release closes every handle the request opened. Close failures are
// logged; they do not change a response that has already been decided.
func release(procedure string, scope *link.Scope) {
	if err := scope.Close(); err != nil {
		logger.Error("%s: failed to release handles: %v", procedure, err)
	}
}
