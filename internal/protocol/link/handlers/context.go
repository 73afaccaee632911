package handlers

import (
	"context"

	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Context carries per-request information shared by every procedure.
type Context struct {
	// Context carries cancellation signals and deadlines.
	// Handlers check it once before starting; a started request always
	// runs to completion.
	Context context.Context

	// ClientAddr identifies the caller in logs.
	// Format: "IP:port" (e.g., "192.168.1.100:1234"), or a free-form tag.
	ClientAddr string

	// RequestID correlates log lines of one request.
	RequestID string
}

// cancelled reports whether the request was cancelled before starting.
func (c *Context) cancelled() error {
	if c.Context == nil {
		return nil
	}
	return c.Context.Err()
}

func (c *Context) ctx() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

// Location addresses a link relative to an object the caller holds.
type Location struct {
	// ID is the object the path starts from (a container for most
	// requests).
	ID object.ObjectID

	// Handles are handles the caller already holds on ID. They are never
	// closed by a handler. Zero handles make the handler open ID itself.
	Handles object.Handles

	// MetadataID is the metadata sub-object of ID when the caller knows it.
	MetadataID object.ObjectID

	// Path is a slash-separated path relative to ID, or absolute from the
	// container root when it starts with '/'.
	Path string
}

// start returns the resolver starting point of the location.
func (l Location) start() link.Location {
	return link.Location{ID: l.ID, Handles: l.Handles, MetadataID: l.MetadataID}
}
