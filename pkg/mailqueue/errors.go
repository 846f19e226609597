package mailqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrSerializedMessageInvalid is returned when a queue file does not hold a valid message
	ErrSerializedMessageInvalid = errors.New("serialized message is invalid")

	// ErrSerializedFailureInvalid is returned when a failure sidecar cannot be decoded
	ErrSerializedFailureInvalid = errors.New("serialized transport failure metadata is invalid")

	// ErrInvalidMessage is returned when a message cannot be queued (missing envelope or body)
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidRecoveryTimeout is returned when Recover is called with a non-positive timeout
	ErrInvalidRecoveryTimeout = errors.New("recovery timeout must be positive")

	// ErrTransportNil is returned when a nil real transport is passed to Dequeue or FlushQueue
	ErrTransportNil = errors.New("transport cannot be nil")

	// ErrDirectoryRequired is returned when a file transport is created without a directory
	ErrDirectoryRequired = errors.New("queue directory is required")

	// ErrInvalidItemID is returned when an item id carries no known state suffix
	ErrInvalidItemID = errors.New("invalid queue item id")

	// ErrSpoolNil is returned when a worker is created without a queueable transport
	ErrSpoolNil = errors.New("queueable transport cannot be nil")

	// ErrWorkerAlreadyStarted is returned by Start on a running worker
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned by Stop on a worker that is not running
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrTransportFailed wraps every error returned by a real transport
	ErrTransportFailed = errors.New("mail transport failed")
)

// PayloadKind names the kind of serialized record an InvalidPayloadError refers to.
type PayloadKind string

const (
	PayloadMessage PayloadKind = "message"
	PayloadFailure PayloadKind = "failure"
)

// InvalidPayloadError reports a queue artifact that could not be deserialized.
type InvalidPayloadError struct {
	Location string
	Kind     PayloadKind
	Err      error
}

func (e *InvalidPayloadError) Error() string {
	if e.Kind == PayloadFailure {
		return fmt.Sprintf("the file %q does not contain valid serialized transport failure metadata", e.Location)
	}
	return fmt.Sprintf("the file %q does not contain a valid serialized mail message", e.Location)
}

// Is makes the error match the sentinel of its payload kind.
func (e *InvalidPayloadError) Is(target error) bool {
	switch target {
	case ErrSerializedMessageInvalid:
		return e.Kind == PayloadMessage
	case ErrSerializedFailureInvalid:
		return e.Kind == PayloadFailure
	}
	return false
}

func (e *InvalidPayloadError) Unwrap() error {
	return e.Err
}

// TransportError is returned by Dequeue and FlushQueue when the real transport
// rejects a message. Kind identifies the failure category and is persisted in
// the failure record.
type TransportError struct {
	Kind string
	Err  error
}

// NewTransportError wraps err with an explicit failure kind.
func NewTransportError(kind string, err error) *TransportError {
	return &TransportError{Kind: kind, Err: err}
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return ErrTransportFailed.Error()
	}
	return e.Err.Error()
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailed
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError returns err as a *TransportError, wrapping it when needed.
func AsTransportError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Kind: qualifiedTypeName(err), Err: err}
}
