package link

import (
	"errors"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// LinkError represents a domain error from link operations.
//
// These are the outcomes a caller can act on (name missing, name taken,
// checksum mismatch, ...). Request handlers translate LinkError codes to
// response status values.
type LinkError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the link path related to the error (if applicable)
	Path string

	// Err is the underlying store error, if any
	Err error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying store error.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a link error.
type ErrorCode int

const (
	// ErrNotFound indicates a path component, link or object does not exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a link with the name already exists
	ErrAlreadyExists

	// ErrWrongLinkKind indicates the operation needs the other link kind
	// (e.g. reading the value of a hard link)
	ErrWrongLinkKind

	// ErrIntegrity indicates a scratch pad failed checksum verification
	ErrIntegrity

	// ErrStoreFailure indicates the underlying object store failed
	ErrStoreFailure

	// ErrAllocation indicates a response buffer could not be sized
	ErrAllocation

	// ErrCorruptData indicates stored bytes could not be decoded
	ErrCorruptData

	// ErrInvalidArgument indicates invalid request parameters
	// Examples: empty link name, empty soft-link target
	ErrInvalidArgument

	// ErrLinkLoop indicates too many soft links were followed
	ErrLinkLoop
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrWrongLinkKind:
		return "wrong link kind"
	case ErrIntegrity:
		return "integrity error"
	case ErrStoreFailure:
		return "store failure"
	case ErrAllocation:
		return "allocation failure"
	case ErrCorruptData:
		return "corrupt data"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrLinkLoop:
		return "too many soft links"
	default:
		return "unknown error"
	}
}

// newError builds a LinkError.
func newError(code ErrorCode, message, path string) *LinkError {
	return &LinkError{Code: code, Message: message, Path: path}
}

// storeError classifies an object store error. Missing objects and keys
// become ErrNotFound; everything else is ErrStoreFailure. LinkErrors pass
// through unchanged.
func storeError(err error, message, path string) error {
	if err == nil {
		return nil
	}

	var le *LinkError
	if errors.As(err, &le) {
		return err
	}

	code := ErrStoreFailure
	if errors.Is(err, object.ErrObjectNotFound) || errors.Is(err, object.ErrKeyNotFound) {
		code = ErrNotFound
	}
	return &LinkError{Code: code, Message: message, Path: path, Err: err}
}

// IsCode reports whether err is a LinkError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var le *LinkError
	return errors.As(err, &le) && le.Code == code
}

// CodeOf returns the code of a LinkError in err's chain. Errors that are
// not LinkErrors are reported as ErrStoreFailure.
func CodeOf(err error) ErrorCode {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrStoreFailure
}
