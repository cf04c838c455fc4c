// Package errs provides the error kinds shared by the gallery engine and
// its HTTP surface.
//
// Store failures are wrapped with the operation and the key or prefix that
// failed, so callers can log and classify them without importing a backend:
//
//	return errs.Wrap(errs.KindStoreUnavailable, "list", prefix, err)
//
//	if errs.IsInvalidName(err) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	}
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises an error without exposing backend-specific codes.
type Kind int

const (
	KindUnknown          Kind = iota
	KindInvalidName           // sanitization left nothing usable
	KindInvalidInput          // malformed request parameters
	KindStoreUnavailable      // the object store failed or is unreachable
	KindPartialDeletion       // some objects of a folder could not be deleted
	KindNotFound              // no object or folder matched
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "invalid_name"
	case KindInvalidInput:
		return "invalid_input"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindPartialDeletion:
		return "partial_deletion"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the engine.
type Error struct {
	Kind Kind
	// Op names the engine operation, e.g. "list", "delete folder".
	Op string
	// Key is the object key, prefix or folder path involved, if any.
	Key     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with no cause.
func New(kind Kind, op, key, msg string) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Message: msg}
}

// Wrap creates an *Error around an underlying cause.
func Wrap(kind Kind, op, key string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Cause: cause}
}

func IsInvalidName(err error) bool      { return KindOf(err) == KindInvalidName }
func IsInvalidInput(err error) bool     { return KindOf(err) == KindInvalidInput }
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }
func IsPartialDeletion(err error) bool  { return KindOf(err) == KindPartialDeletion }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }

// KindOf extracts the Kind from the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err onto the response status a handler should use.
// A partial deletion is a success with warnings.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidName, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPartialDeletion:
		return http.StatusOK
	case KindStoreUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
