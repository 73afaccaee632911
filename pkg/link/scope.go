package link

import (
	"context"
	"errors"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// Scope owns the handles opened while serving one request and closes them
// on Close.
//
// Handles supplied by the caller are registered as borrowed: opening
// through the scope never returns them, and releasing one of them is a
// no-op, so a request never closes a handle it was given. Handle identity is
// the handle cookie.
//
// A Scope is used by a single request and is not safe for concurrent use.
type Scope struct {
	client   object.Client
	borrowed map[uint64]struct{}
	held     []object.Handle
}

// NewScope creates a scope whose borrowed handles are the defined handles
// of each pair in borrowed.
func NewScope(client object.Client, borrowed ...object.Handles) *Scope {
	s := &Scope{
		client:   client,
		borrowed: make(map[uint64]struct{}),
	}
	for _, hs := range borrowed {
		for _, h := range []object.Handle{hs.Read, hs.Write} {
			if h.Defined() {
				s.borrowed[h.Cookie] = struct{}{}
			}
		}
	}
	return s
}

// Client returns the object store the scope opens handles on.
func (s *Scope) Client() object.Client {
	return s.client
}

// Borrowed reports whether h is a caller-supplied handle.
func (s *Scope) Borrowed(h object.Handle) bool {
	_, ok := s.borrowed[h.Cookie]
	return h.Defined() && ok
}

// OpenRead opens a read handle on id that the scope will close.
func (s *Scope) OpenRead(ctx context.Context, id object.ObjectID, rtid object.TxID) (object.Handle, error) {
	h, err := s.client.OpenRead(ctx, id, rtid)
	if err != nil {
		return object.Handle{}, err
	}
	return s.track(h), nil
}

// OpenWrite opens a write handle on id that the scope will close.
func (s *Scope) OpenWrite(ctx context.Context, id object.ObjectID, rtid object.TxID) (object.Handle, error) {
	h, err := s.client.OpenWrite(ctx, id, rtid)
	if err != nil {
		return object.Handle{}, err
	}
	return s.track(h), nil
}

// OpenPair opens a read and a write handle on id.
func (s *Scope) OpenPair(ctx context.Context, id object.ObjectID, rtid object.TxID) (object.Handles, error) {
	rd, err := s.OpenRead(ctx, id, rtid)
	if err != nil {
		return object.Handles{}, err
	}
	wr, err := s.OpenWrite(ctx, id, rtid)
	if err != nil {
		_ = s.Release(rd)
		return object.Handles{}, err
	}
	return object.Handles{Read: rd, Write: wr}, nil
}

// track registers a handle opened on behalf of the request.
func (s *Scope) track(h object.Handle) object.Handle {
	if h.Defined() && !s.Borrowed(h) {
		s.held = append(s.held, h)
	}
	return h
}

// Release closes h early. Borrowed, undefined and unknown handles are
// ignored, so releasing is always safe.
func (s *Scope) Release(h object.Handle) error {
	if !h.Defined() || s.Borrowed(h) {
		return nil
	}
	for i := len(s.held) - 1; i >= 0; i-- {
		if s.held[i].Same(h) {
			s.held = append(s.held[:i], s.held[i+1:]...)
			return s.client.CloseHandle(h)
		}
	}
	return nil
}

// ReleasePair releases both handles of a pair.
func (s *Scope) ReleasePair(hs object.Handles) error {
	return errors.Join(s.Release(hs.Write), s.Release(hs.Read))
}

// Held returns the number of handles the scope still has to close.
func (s *Scope) Held() int {
	return len(s.held)
}

// Close closes every handle still held, newest first. All handles are
// closed even if some fail; failures are joined.
func (s *Scope) Close() error {
	var errs []error
	for i := len(s.held) - 1; i >= 0; i-- {
		if err := s.client.CloseHandle(s.held[i]); err != nil {
			errs = append(errs, err)
		}
	}
	s.held = nil
	return errors.Join(errs...)
}
