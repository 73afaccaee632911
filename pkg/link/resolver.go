package link

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// DefaultMaxSoftLinkHops bounds how many soft links one resolution follows.
const DefaultMaxSoftLinkHops = 16

// Location is the starting point of a request: an object and the handles
// the caller already holds on it, if any.
type Location struct {
	// ID is the starting object.
	ID object.ObjectID

	// Handles are caller-owned handles on ID. When the read handle is
	// undefined the resolver opens the object itself.
	Handles object.Handles

	// MetadataID is the metadata sub-object of ID when the caller already
	// knows it (object.ObjectID{} otherwise).
	MetadataID object.ObjectID
}

// Node is an object reached by resolution together with the handles held
// on it.
type Node struct {
	ID      object.ObjectID
	Handles object.Handles
}

// Type returns the object type recorded on the node's read handle.
func (n Node) Type() object.ObjectType {
	return n.Handles.Read.Type
}

// IsContainer reports whether links may be looked up in n. A node whose
// handle carries no type, as a caller-built handle may, counts as a
// container; lookups in a non-container then fail in the link store.
func (n Node) IsContainer() bool {
	t := n.Type()
	return t == 0 || t.IsContainer()
}

// Resolved is the container holding the last component of a path.
type Resolved struct {
	// Name is the last path component: the link name to operate on.
	Name string

	// Parent is the container that holds (or will hold) Name. Handles
	// on it belong to the request scope and are closed with it unless
	// they are the caller's own.
	Parent Node
}

// Resolver turns slash-separated paths into containers and objects.
//
// Paths are relative to the starting location unless they begin with '/',
// in which case they start at the root group. Empty and "." components are
// skipped. Soft links met on the way are followed: their targets are
// resolved from the root when absolute and from the container holding the
// soft link otherwise.
type Resolver struct {
	links   *LinkStore
	maxHops int
}

// NewResolver creates a resolver. maxHops <= 0 selects
// DefaultMaxSoftLinkHops.
func NewResolver(links *LinkStore, maxHops int) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxSoftLinkHops
	}
	return &Resolver{links: links, maxHops: maxHops}
}

// Resolve walks every component of path but the last and returns the
// container that holds the last one.
//
// Intermediate containers are opened for reading only and released as the
// walk moves past them. When forWrite is set, the returned container also
// carries a write handle. The returned handles are left open.
//
// Returns ErrNotFound if an intermediate component is missing or is not a
// container, ErrLinkLoop if too many soft links are followed, and
// ErrInvalidArgument if path names no link at all.
func (r *Resolver) Resolve(ctx context.Context, scope *Scope, loc Location, path string, tx object.Tx, forWrite bool) (Resolved, error) {
	absolute, segs := splitPath(path)
	if len(segs) == 0 {
		return Resolved{}, newError(ErrInvalidArgument, "path names no link", path)
	}

	start, owned, err := r.begin(ctx, scope, loc, absolute, tx.Read)
	if err != nil {
		return Resolved{}, onPath(err, path)
	}

	hops := 0
	parent, _, err := r.walk(ctx, scope, start, owned, segs[:len(segs)-1], tx.Read, &hops, false)
	if err != nil {
		return Resolved{}, onPath(err, path)
	}
	if !parent.IsContainer() {
		return Resolved{}, newError(ErrNotFound, fmt.Sprintf("%s is not a container", parent.Type()), path)
	}

	if forWrite && !parent.Handles.Write.Defined() {
		wr, err := scope.OpenWrite(ctx, parent.ID, tx.Read)
		if err != nil {
			return Resolved{}, storeError(err, "cannot open container for writing", path)
		}
		parent.Handles.Write = wr
	}

	return Resolved{Name: segs[len(segs)-1], Parent: parent}, nil
}

// Open resolves every component of path, including the last, and returns
// the object it names opened for reading. An empty path (or ".") names the
// starting location itself.
func (r *Resolver) Open(ctx context.Context, scope *Scope, loc Location, path string, rtid object.TxID) (Node, error) {
	absolute, segs := splitPath(path)

	start, owned, err := r.begin(ctx, scope, loc, absolute, rtid)
	if err != nil {
		return Node{}, onPath(err, path)
	}

	hops := 0
	n, _, err := r.walk(ctx, scope, start, owned, segs, rtid, &hops, true)
	if err != nil {
		return Node{}, onPath(err, path)
	}
	return n, nil
}

// begin returns the node a walk starts from and whether the walk owns it.
// A caller's write handle on the start is carried into the node.
func (r *Resolver) begin(ctx context.Context, scope *Scope, loc Location, absolute bool, rtid object.TxID) (Node, bool, error) {
	if absolute {
		rd, err := scope.OpenRead(ctx, object.RootID, rtid)
		if err != nil {
			return Node{}, false, storeError(err, "cannot open root group", "/")
		}
		return Node{ID: object.RootID, Handles: object.Handles{Read: rd}}, true, nil
	}

	if loc.Handles.Read.Defined() {
		return Node{ID: loc.ID, Handles: loc.Handles}, false, nil
	}

	rd, err := scope.OpenRead(ctx, loc.ID, rtid)
	if err != nil {
		return Node{}, false, storeError(err, "cannot open start location", "")
	}
	return Node{ID: loc.ID, Handles: object.Handles{Read: rd, Write: loc.Handles.Write}}, true, nil
}

// walk follows segs from start. If owned is set, start was opened for
// this walk and is released once the walk moves past it. Every object
// reached must be a container, except the last one when leafOK is set.
// The returned flag reports whether the result was opened by the walk.
func (r *Resolver) walk(ctx context.Context, scope *Scope, start Node, owned bool, segs []string, rtid object.TxID, hops *int, leafOK bool) (Node, bool, error) {
	cur, curOwned := start, owned
	for i, seg := range segs {
		last := i == len(segs)-1
		next, err := r.step(ctx, scope, cur, seg, rtid, hops, !(last && leafOK))
		if err != nil {
			return Node{}, false, err
		}
		if curOwned {
			_ = scope.ReleasePair(cur.Handles)
		}
		cur, curOwned = next, true
	}
	return cur, curOwned, nil
}

// step follows the link name inside cur and returns the object it leads
// to, freshly opened for reading.
func (r *Resolver) step(ctx context.Context, scope *Scope, cur Node, name string, rtid object.TxID, hops *int, wantContainer bool) (Node, error) {
	l, err := r.links.Lookup(ctx, cur.Handles.Read, rtid, name)
	if err != nil {
		return Node{}, err
	}

	var next Node
	switch l := l.(type) {
	case Hard:
		rd, err := scope.OpenRead(ctx, l.Target, rtid)
		if err != nil {
			return Node{}, storeError(err, "link target does not exist", name)
		}
		next = Node{ID: l.Target, Handles: object.Handles{Read: rd}}

	case Soft:
		*hops++
		if *hops > r.maxHops {
			return Node{}, newError(ErrLinkLoop, fmt.Sprintf("more than %d soft links", r.maxHops), name)
		}

		absolute, segs := splitPath(l.Target)
		var (
			owned bool
			err   error
		)
		if absolute {
			var root Node
			root, owned, err = r.begin(ctx, scope, Location{}, true, rtid)
			if err == nil {
				next, owned, err = r.walk(ctx, scope, root, owned, segs, rtid, hops, !wantContainer)
			}
		} else {
			next, owned, err = r.walk(ctx, scope, cur, false, segs, rtid, hops, !wantContainer)
		}
		if err != nil {
			return Node{}, err
		}
		if !owned {
			// The soft link led back to cur; hand out a handle of our own.
			rd, err := scope.OpenRead(ctx, next.ID, rtid)
			if err != nil {
				return Node{}, storeError(err, "cannot reopen container", name)
			}
			next = Node{ID: next.ID, Handles: object.Handles{Read: rd}}
		}

	default:
		return Node{}, newError(ErrCorruptData, fmt.Sprintf("unexpected link type %T", l), name)
	}

	if wantContainer && !next.Type().IsContainer() {
		_ = scope.ReleasePair(next.Handles)
		return Node{}, newError(ErrNotFound, fmt.Sprintf("%s is not a container", next.Type()), name)
	}
	return next, nil
}

// splitPath splits a path into components, dropping empty and "."
// components.
func splitPath(path string) (absolute bool, segs []string) {
	absolute = strings.HasPrefix(path, "/")
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segs = append(segs, seg)
	}
	return absolute, segs
}

// onPath reports a resolution error against the full requested path.
func onPath(err error, path string) error {
	var le *LinkError
	if !errors.As(err, &le) {
		return err
	}
	cp := *le
	if cp.Path != "" && cp.Path != path {
		cp.Message = fmt.Sprintf("%s (at %q)", cp.Message, cp.Path)
	}
	cp.Path = path
	return &cp
}
