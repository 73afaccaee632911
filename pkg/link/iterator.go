package link

import (
	"context"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Record is one link reported by iteration: its display path relative to
// the starting container and its info.
type Record struct {
	Path string
	Info Info
}

// Iterator lists the links below a container, optionally recursively.
type Iterator struct {
	links *LinkStore
}

// NewIterator creates an iterator reading through links.
func NewIterator(links *LinkStore) *Iterator {
	return &Iterator{links: links}
}

// rootPrefix is the display prefix of the starting container. It is never
// prepended to child names.
const rootPrefix = "."

// frame is one container on the walk stack.
type frame struct {
	node    Node
	owned   bool
	prefix  string
	entries []Entry
	next    int
}

// Iterate lists every link of start in store order. With recursive set,
// each hard link to a container is followed right after it is reported,
// so the result is in pre-order. Hard links back to a container already
// on the current path are reported but not followed.
//
// The walk keeps an explicit stack instead of recursing. On failure the
// records gathered so far are returned with the error; handles opened for
// the walk stay in scope and are closed with it.
func (it *Iterator) Iterate(ctx context.Context, scope *Scope, start Node, rtid object.TxID, recursive bool) ([]Record, error) {
	entries, err := it.links.List(ctx, start.Handles.Read, rtid)
	if err != nil {
		return nil, err
	}

	var out []Record
	stack := []*frame{{node: start, prefix: rootPrefix, entries: entries}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.entries) {
			stack = stack[:len(stack)-1]
			if top.owned {
				_ = scope.ReleasePair(top.node.Handles)
			}
			continue
		}

		e := top.entries[top.next]
		top.next++

		path := displayPath(top.prefix, e.Name)
		out = append(out, Record{Path: path, Info: e.Link.Info()})

		hard, ok := e.Link.(Hard)
		if !recursive || !ok {
			continue
		}
		if onStack(stack, hard.Target) {
			logger.Warn("ITERATE: not descending into %s: %s is already being listed", path, hard.Target)
			continue
		}

		rd, err := scope.OpenRead(ctx, hard.Target, rtid)
		if err != nil {
			return out, storeError(err, "cannot open link target", path)
		}
		if !rd.Type.IsContainer() {
			_ = scope.Release(rd)
			continue
		}

		childEntries, err := it.links.List(ctx, rd, rtid)
		if err != nil {
			_ = scope.Release(rd)
			return out, onPath(err, path)
		}

		stack = append(stack, &frame{
			node:    Node{ID: hard.Target, Handles: object.Handles{Read: rd}},
			owned:   true,
			prefix:  path,
			entries: childEntries,
		})
	}

	return out, nil
}

func displayPath(prefix, name string) string {
	if prefix == rootPrefix {
		return name
	}
	return prefix + "/" + name
}

func onStack(stack []*frame, id object.ObjectID) bool {
	for _, f := range stack {
		if f.node.ID == id {
			return true
		}
	}
	return false
}
