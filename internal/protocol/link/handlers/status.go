package handlers

import (
	"context"
	"errors"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/registry"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Status is the outcome code carried by every link response.
type Status uint32

const (
	// StatusOK indicates success
	StatusOK Status = iota

	// StatusNotFound indicates a path component, link, object or container
	// does not exist
	StatusNotFound

	// StatusExists indicates the link name is already taken
	StatusExists

	// StatusWrongKind indicates the link is hard where soft is required
	// (or the reverse)
	StatusWrongKind

	// StatusIntegrity indicates a scratch pad checksum mismatch
	StatusIntegrity

	// StatusStoreFailure indicates the object store failed
	StatusStoreFailure

	// StatusNoMemory indicates a response buffer could not be sized
	StatusNoMemory

	// StatusCorrupt indicates stored bytes could not be decoded
	StatusCorrupt

	// StatusInvalid indicates malformed request parameters
	StatusInvalid

	// StatusLoop indicates too many soft links were followed
	StatusLoop

	// StatusReadOnly indicates a mutating request against a read-only
	// container
	StatusReadOnly

	// StatusBusy indicates the request was rejected by admission control
	StatusBusy

	// StatusCancelled indicates the request was cancelled before it started
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusExists:
		return "EXISTS"
	case StatusWrongKind:
		return "WRONG_KIND"
	case StatusIntegrity:
		return "INTEGRITY"
	case StatusStoreFailure:
		return "STORE_FAILURE"
	case StatusNoMemory:
		return "NO_MEMORY"
	case StatusCorrupt:
		return "CORRUPT"
	case StatusInvalid:
		return "INVALID"
	case StatusLoop:
		return "LOOP"
	case StatusReadOnly:
		return "READ_ONLY"
	case StatusBusy:
		return "BUSY"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MapError converts an error from the link layer to a response status.
//
// Mapping:
//   - link.ErrNotFound → StatusNotFound
//   - link.ErrAlreadyExists → StatusExists
//   - link.ErrWrongLinkKind → StatusWrongKind
//   - link.ErrIntegrity → StatusIntegrity
//   - link.ErrAllocation → StatusNoMemory
//   - link.ErrCorruptData → StatusCorrupt
//   - link.ErrInvalidArgument → StatusInvalid
//   - link.ErrLinkLoop → StatusLoop
//   - registry.ErrReadOnly → StatusReadOnly
//   - context errors → StatusCancelled
//   - anything else → StatusStoreFailure
func MapError(err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, registry.ErrReadOnly) {
		return StatusReadOnly
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusCancelled
	}

	var le *link.LinkError
	if !errors.As(err, &le) {
		return StatusStoreFailure
	}

	switch le.Code {
	case link.ErrNotFound:
		return StatusNotFound
	case link.ErrAlreadyExists:
		return StatusExists
	case link.ErrWrongLinkKind:
		return StatusWrongKind
	case link.ErrIntegrity:
		return StatusIntegrity
	case link.ErrAllocation:
		return StatusNoMemory
	case link.ErrCorruptData:
		return StatusCorrupt
	case link.ErrInvalidArgument:
		return StatusInvalid
	case link.ErrLinkLoop:
		return StatusLoop
	default:
		return StatusStoreFailure
	}
}

// failure maps err to a status and logs it at the level its cause
// deserves: WARN for caller mistakes, ERROR for store and data problems.
func failure(procedure, step string, err error, client string) Status {
	status := MapError(err)
	switch status {
	case StatusStoreFailure, StatusIntegrity, StatusCorrupt:
		logger.Error("%s failed at %s: status=%s client=%s error=%v", procedure, step, status, client, err)
	default:
		logger.Warn("%s failed at %s: status=%s client=%s error=%v", procedure, step, status, client, err)
	}
	return status
}

// storeError wraps an object store error met by a handler itself (not
// through the link layer) so that MapError can classify it.
func storeError(err error, id object.ObjectID) error {
	code := link.ErrStoreFailure
	if errors.Is(err, object.ErrObjectNotFound) {
		code = link.ErrNotFound
	}
	return &link.LinkError{Code: code, Message: "cannot open object", Path: id.String(), Err: err}
}
