// Package ingest implements the streaming file-ingestion client: one
// client per transport connector, one open file session at a time,
// strictly sequenced chunk delivery.
//
// This file defines the error taxonomy. Sentinel errors cover caller
// logic errors; TransportError wraps connector failures with the
// operation they belong to, so callers can tell "chunk lost" from
// "file not finalized" via errors.As and the predicates below.
package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller logic failures.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrSessionConflict indicates OpenFile was called while another
	// session is open. Close the existing session first.
	ErrSessionConflict = errors.New("a file session is already open")

	// ErrSessionClosed indicates Write or Close was called on a session
	// that is not open.
	ErrSessionClosed = errors.New("session is not open")

	// ErrStopped indicates an operation on a stopped client. Stopped is
	// terminal; create a new client with Init.
	ErrStopped = errors.New("client is stopped")
)

// Op identifies the client operation a transport failure belongs to.
type Op string

// Operation constants for TransportError classification.
const (
	OpInit    Op = "init"
	OpOpen    Op = "open"
	OpWrite   Op = "write"
	OpClose   Op = "close"
	OpRelease Op = "release"
)

// TransportError wraps an underlying connector error with the failed
// operation and the file involved. It preserves the original error in
// the chain for inspection via errors.Is/errors.As.
//
// A write failure means the chunk occupied no sequence slot: retrying
// the same payload is safe. A close failure leaves the session open and
// retryable.
type TransportError struct {
	// Op is the operation that failed.
	Op Op
	// File is the file identifier involved, if any.
	File string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// WrapInitError wraps a transport acquisition error.
// Returns nil if err is nil.
func WrapInitError(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: OpInit, Err: err}
}

// WrapOpenError wraps a file open error. Returns nil if err is nil.
func WrapOpenError(err error, file string) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: OpOpen, File: file, Err: err}
}

// WrapWriteError wraps a chunk delivery error. Returns nil if err is nil.
func WrapWriteError(err error, file string) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: OpWrite, File: file, Err: err}
}

// WrapCloseError wraps a final framing delivery error.
// Returns nil if err is nil.
func WrapCloseError(err error, file string) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: OpClose, File: file, Err: err}
}

// WrapReleaseError wraps a connector release error.
// Returns nil if err is nil.
func WrapReleaseError(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: OpRelease, Err: err}
}

// isOp reports whether err is a TransportError for the given operation.
func isOp(err error, op Op) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Op == op
	}
	return false
}

// IsInitError reports whether err is a transport acquisition failure.
// Fatal to the client instance; the caller must not proceed.
func IsInitError(err error) bool { return isOp(err, OpInit) }

// IsOpenError reports whether err is a file open failure.
func IsOpenError(err error) bool { return isOp(err, OpOpen) }

// IsWriteError reports whether err is a chunk delivery failure.
// Recoverable: the sequence counter did not advance, so retrying the
// same payload reuses the same sequence number.
func IsWriteError(err error) bool { return isOp(err, OpWrite) }

// IsCloseError reports whether err is a final framing failure.
// Recoverable: the session stays open and Close may be retried.
func IsCloseError(err error) bool { return isOp(err, OpClose) }

// IsReleaseError reports whether err is a connector release failure.
func IsReleaseError(err error) bool { return isOp(err, OpRelease) }
