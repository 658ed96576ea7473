package streamstore

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamNotFound indicates that the requested stream does not exist in the store
	// (soft deleted streams are reported as not found as well)
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStreamDeleted indicates that the stream was deleted and cannot be used
	ErrStreamDeleted = errors.New("stream deleted")

	// ErrStreamAlreadyExists indicates that a stream was expected not to exist
	ErrStreamAlreadyExists = errors.New("stream already exists")

	// ErrStreamReadOnly is returned on attempts to write to a projection (or $all)
	ErrStreamReadOnly = errors.New("stream is read only")

	// ErrWrongExpectedVersion is matched by every WrongExpectedVersionError
	ErrWrongExpectedVersion = errors.New("optimistic concurrency check failed: wrong expected version")

	// ErrEventNotFound indicates that the requested event number does not exist in the stream
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidEvent is returned when an event fails validation
	ErrInvalidEvent = errors.New("invalid event")

	// ErrSubscriptionClosedByClient is reported to a subscription drop handler
	// when the client unsubscribes or cancels the subscription context
	ErrSubscriptionClosedByClient = errors.New("subscription closed by client")
)

// WrongExpectedVersionError carries the expected and the actual stream version
type WrongExpectedVersionError struct {
	Stream   StreamID
	Expected ExpectedVersion
	Actual   int64
}

// Error implements error
func (e *WrongExpectedVersionError) Error() string {
	return fmt.Sprintf("%v: stream %q expected %s, actual %d", ErrWrongExpectedVersion, e.Stream, e.Expected, e.Actual)
}

// Is matches ErrWrongExpectedVersion, and ErrStreamAlreadyExists if a new
// (or empty) stream was expected but the stream already had events
func (e *WrongExpectedVersionError) Is(target error) bool {
	if target == ErrWrongExpectedVersion {
		return true
	}

	return target == ErrStreamAlreadyExists && e.Expected.IsNoOrEmptyStream() && e.Actual > NoVersion
}

// TransportError wraps a backend specific failure so that adapter callers
// never have to deal with driver error types
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err (nil stays nil)
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &TransportError{Op: op, Err: err}
}

// Error implements error
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped backend error
func (e *TransportError) Unwrap() error { return e.Err }
