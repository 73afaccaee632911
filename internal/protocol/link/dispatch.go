// Package link dispatches link requests to their handlers.
//
// The dispatcher is the boundary that guarantees the response contract:
// whatever happens inside a handler (a failure status, a cancellation, a
// panic, a rejection by the rate limiter), the caller's deliver function
// is invoked exactly once per request.
package link

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/internal/protocol/link/handlers"
	"github.com/marmos91/dittolink/internal/ratelimiter"
	linkcore "github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/metrics"
)

// Procedure numbers a link operation.
type Procedure uint32

const (
	ProcCreate Procedure = iota + 1
	ProcMove
	ProcExists
	ProcGetInfo
	ProcGetValue
	ProcRemove
	ProcIterate
)

func (p Procedure) String() string {
	if info, ok := dispatchTable[p]; ok {
		return info.Name
	}
	return fmt.Sprintf("PROC(%d)", uint32(p))
}

// Request is one link request as handed over by the transport.
type Request struct {
	// ID correlates the request with its reply. Generated when empty.
	ID string

	// Procedure selects the operation.
	Procedure Procedure

	// ClientAddr identifies the caller in logs.
	ClientAddr string

	// Body is the procedure's request: *handlers.CreateRequest for
	// ProcCreate, *handlers.MoveRequest for ProcMove, and so on.
	Body handlers.Request
}

// Reply is the single answer to a Request.
type Reply struct {
	RequestID string
	Procedure Procedure

	// Response is the procedure's response type (e.g.
	// *handlers.RemoveResponse). It is never nil.
	Response handlers.Response
}

// Status returns the status of the reply's response.
func (r *Reply) Status() handlers.Status {
	return r.Response.GetStatus()
}

// ============================================================================
// Procedure Dispatch Table
// ============================================================================

// procedureHandler runs one procedure. body has already been checked to be
// the procedure's request type.
type procedureHandler func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error)

// procedureInfo contains metadata about a procedure for dispatch.
type procedureInfo struct {
	// Name is the procedure name for logging and metrics (e.g., "CREATE")
	Name string

	// Handler is the function that processes this procedure
	Handler procedureHandler

	// ErrorResponse builds the procedure's response carrying only a status,
	// used when the handler cannot produce one
	ErrorResponse func(status handlers.Status) handlers.Response

	// Accepts reports whether body is the procedure's request type
	Accepts func(body handlers.Request) bool
}

var dispatchTable = map[Procedure]*procedureInfo{
	ProcCreate: {
		Name: handlers.ProcCreate,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.Create(ctx, body.(*handlers.CreateRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.CreateResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.CreateRequest],
	},
	ProcMove: {
		Name: handlers.ProcMove,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.Move(ctx, body.(*handlers.MoveRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.MoveResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.MoveRequest],
	},
	ProcExists: {
		Name: handlers.ProcExists,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.Exists(ctx, body.(*handlers.ExistsRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.ExistsResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.ExistsRequest],
	},
	ProcGetInfo: {
		Name: handlers.ProcGetInfo,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.GetInfo(ctx, body.(*handlers.GetInfoRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.GetInfoResponse{ResponseBase: handlers.ResponseBase{Status: s}, Info: linkcore.ErrorInfo}
		},
		Accepts: is[*handlers.GetInfoRequest],
	},
	ProcGetValue: {
		Name: handlers.ProcGetValue,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.GetValue(ctx, body.(*handlers.GetValueRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.GetValueResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.GetValueRequest],
	},
	ProcRemove: {
		Name: handlers.ProcRemove,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.Remove(ctx, body.(*handlers.RemoveRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.RemoveResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.RemoveRequest],
	},
	ProcIterate: {
		Name: handlers.ProcIterate,
		Handler: func(ctx *handlers.Context, h handlers.Handler, body handlers.Request) (handlers.Response, error) {
			return h.Iterate(ctx, body.(*handlers.IterateRequest))
		},
		ErrorResponse: func(s handlers.Status) handlers.Response {
			return &handlers.IterateResponse{ResponseBase: handlers.ResponseBase{Status: s}}
		},
		Accepts: is[*handlers.IterateRequest],
	},
}

// is reports whether body is a non-nil T. A typed nil pointer wrapped in
// the interface is rejected like a missing body.
func is[T interface {
	comparable
	handlers.Request
}](body handlers.Request) bool {
	v, ok := body.(T)
	var zero T
	return ok && v != zero
}

// ============================================================================
// Dispatcher
// ============================================================================

// Dispatcher routes requests to a Handler.
//
// Thread safety:
// Dispatch may be called concurrently; the dispatcher holds no per-request
// state.
type Dispatcher struct {
	handler handlers.Handler
	metrics metrics.LinkMetrics
	limiter *ratelimiter.RateLimiter
}

// NewDispatcher creates a dispatcher. A nil m disables metrics and a nil
// limiter admits every request.
func NewDispatcher(h handlers.Handler, m metrics.LinkMetrics, limiter *ratelimiter.RateLimiter) *Dispatcher {
	if m == nil {
		m = metrics.NewNoopLinkMetrics()
	}
	return &Dispatcher{handler: h, metrics: m, limiter: limiter}
}

// Dispatch serves req and passes its reply to deliver.
//
// deliver is called exactly once, on the calling goroutine, before
// Dispatch returns:
//   - unknown procedure or mismatched body → StatusInvalid
//   - rejected by the rate limiter → StatusBusy
//   - handler panic → StatusStoreFailure
//   - otherwise → the handler's response
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, deliver func(*Reply)) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	reply := &Reply{RequestID: req.ID, Procedure: req.Procedure}
	info, ok := dispatchTable[req.Procedure]
	if !ok {
		logger.Warn("unknown procedure %d: request=%s client=%s", uint32(req.Procedure), req.ID, req.ClientAddr)
		reply.Response = &handlers.ResponseBase{Status: handlers.StatusInvalid}
		deliver(reply)
		return
	}
	if req.Body == nil || !info.Accepts(req.Body) {
		logger.Warn("%s: request body %T does not match procedure: request=%s", info.Name, req.Body, req.ID)
		reply.Response = info.ErrorResponse(handlers.StatusInvalid)
		deliver(reply)
		return
	}

	container := req.Body.GetContainer()

	if d.limiter != nil && !d.limiter.Allow(info.Name) {
		logger.Warn("%s rate limited: request=%s client=%s", info.Name, req.ID, req.ClientAddr)
		d.metrics.RecordRateLimited(info.Name)
		reply.Response = info.ErrorResponse(handlers.StatusBusy)
		deliver(reply)
		return
	}

	d.metrics.RecordRequestStart(info.Name, container)
	start := time.Now()

	reply.Response = d.run(ctx, info, req)

	d.metrics.RecordRequestEnd(info.Name, container)
	d.metrics.RecordRequest(info.Name, container, time.Since(start), reply.Response.GetStatus().String())

	deliver(reply)
}

// run invokes the handler, turning a panic or a missing response into an
// error response.
func (d *Dispatcher) run(ctx context.Context, info *procedureInfo, req *Request) (resp handlers.Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s handler panic: request=%s client=%s panic=%v\n%s",
				info.Name, req.ID, req.ClientAddr, r, debug.Stack())
			d.metrics.RecordPanic(info.Name)
			resp = info.ErrorResponse(handlers.StatusStoreFailure)
		}
	}()

	hctx := &handlers.Context{Context: ctx, ClientAddr: req.ClientAddr, RequestID: req.ID}
	resp, err := info.Handler(hctx, d.handler, req.Body)
	if err != nil {
		logger.Debug("%s: request=%s ended early: %v", info.Name, req.ID, err)
	}
	if resp == nil {
		logger.Error("%s handler returned no response: request=%s error=%v", info.Name, req.ID, err)
		status := handlers.StatusStoreFailure
		if err != nil {
			status = handlers.MapError(err)
		}
		return info.ErrorResponse(status)
	}
	return resp
}
