package link

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// LinkStore reads and writes the directory entries of containers.
//
// Each entry is one key of the container object: the key is the link name
// and the value is the encoded link (see codec.go).
type LinkStore struct {
	client object.Client
}

// NewLinkStore creates a link store over client.
func NewLinkStore(client object.Client) *LinkStore {
	return &LinkStore{client: client}
}

// ValidateName checks that name can be stored as a single directory entry.
func ValidateName(name string) error {
	switch {
	case name == "" || name == ".":
		return newError(ErrInvalidArgument, "invalid link name", name)
	case strings.Contains(name, "/"):
		return newError(ErrInvalidArgument, "link name contains '/'", name)
	}
	return nil
}

// Insert adds name -> l to the container open for writing as h.
// Returns ErrAlreadyExists if the name is taken at wtid.
func (s *LinkStore) Insert(ctx context.Context, h object.Handle, wtid object.TxID, name string, l Link) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if soft, ok := l.(Soft); ok && soft.Target == "" {
		return newError(ErrInvalidArgument, "soft link target is empty", name)
	}

	data, err := EncodeLink(l)
	if err != nil {
		return &LinkError{Code: ErrInvalidArgument, Message: "cannot encode link", Path: name, Err: err}
	}

	if err := s.client.PutIfAbsent(ctx, h, name, data, wtid); err != nil {
		if errors.Is(err, object.ErrKeyExists) {
			return &LinkError{Code: ErrAlreadyExists, Message: "link already exists", Path: name, Err: err}
		}
		return storeError(err, "cannot insert link", name)
	}
	return nil
}

// Lookup returns the link stored under name.
func (s *LinkStore) Lookup(ctx context.Context, h object.Handle, rtid object.TxID, name string) (Link, error) {
	data, err := s.client.Get(ctx, h, name, rtid)
	if err != nil {
		if errors.Is(err, object.ErrKeyNotFound) {
			return nil, &LinkError{Code: ErrNotFound, Message: "link not found", Path: name, Err: err}
		}
		return nil, storeError(err, "cannot read link", name)
	}

	l, err := DecodeLink(data)
	if err != nil {
		return nil, withPath(err, name)
	}
	return l, nil
}

// Remove deletes the entry name. Returns ErrNotFound if it is absent.
func (s *LinkStore) Remove(ctx context.Context, h object.Handle, wtid object.TxID, name string) error {
	if err := s.client.Delete(ctx, h, name, wtid); err != nil {
		if errors.Is(err, object.ErrKeyNotFound) {
			return &LinkError{Code: ErrNotFound, Message: "link not found", Path: name, Err: err}
		}
		return storeError(err, "cannot remove link", name)
	}
	return nil
}

// Exists reports whether name is present and decodable. Failures are
// reported as absence.
func (s *LinkStore) Exists(ctx context.Context, h object.Handle, rtid object.TxID, name string) bool {
	_, err := s.Lookup(ctx, h, rtid, name)
	return err == nil
}

// List returns every entry of the container in store order.
func (s *LinkStore) List(ctx context.Context, h object.Handle, rtid object.TxID) ([]Entry, error) {
	kvs, err := s.client.List(ctx, h, rtid)
	if err != nil {
		return nil, storeError(err, "cannot list links", "")
	}

	entries := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		l, err := DecodeLink(kv.Value)
		if err != nil {
			return nil, withPath(err, kv.Key)
		}
		entries = append(entries, Entry{Name: kv.Key, Link: l})
	}
	return entries, nil
}

// withPath sets the path of a LinkError that has none.
func withPath(err error, path string) error {
	var le *LinkError
	if !errors.As(err, &le) || le.Path != "" {
		return err
	}
	cp := *le
	cp.Path = path
	return &cp
}
