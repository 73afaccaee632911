package object

import "errors"

var (
	// ErrObjectNotFound is returned when an object does not exist at the
	// requested transaction.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists is returned by CreateObject when the ID is taken.
	ErrObjectExists = errors.New("object already exists")

	// ErrKeyNotFound is returned when a key is absent from an object.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists is returned by PutIfAbsent when the key is present.
	ErrKeyExists = errors.New("key already exists")

	// ErrHandleClosed is returned for operations on a handle that is not
	// (or no longer) open.
	ErrHandleClosed = errors.New("handle is not open")

	// ErrReadOnlyHandle is returned for writes through a read handle.
	ErrReadOnlyHandle = errors.New("handle is read-only")

	// ErrStoreClosed is returned after the store has been closed.
	ErrStoreClosed = errors.New("store is closed")
)
