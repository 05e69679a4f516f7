package boundary

import (
	"errors"
	"fmt"
)

// Errors a Runtime adapter returns from a dispatch
var (
	ErrException       = errors.New("remote exception raised")
	ErrWrongValueType  = errors.New("wrong value type")
	ErrNoSuchOperation = errors.New("no such remote operation")
)

// Transport failure classes, matched with errors.Is against a *TransportError
var (
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTimeout           = errors.New("call timed out, outcome unknown")
	ErrCanceled          = errors.New("call canceled")
	ErrCallFailed        = errors.New("failed to call remote operation")
)

// ErrRemoteFault matches any *RemoteFault with errors.Is
var ErrRemoteFault = errors.New("remote fault")

// TransportReason classifies a TransportError
type TransportReason int

const (
	ReasonSignatureMismatch TransportReason = iota
	ReasonTimeout
	ReasonCanceled
	ReasonCallFailed
)

func (r TransportReason) sentinel() error {
	switch r {
	case ReasonSignatureMismatch:
		return ErrSignatureMismatch
	case ReasonTimeout:
		return ErrTimeout
	case ReasonCanceled:
		return ErrCanceled
	default:
		return ErrCallFailed
	}
}

func (r TransportReason) String() string {
	return r.sentinel().Error()
}

// TransportError reports a call that could not be carried out or whose
// outcome could not be interpreted. Remote state after it is undefined.
type TransportError struct {
	Op     Operation
	Reason TransportReason
	Err    error // Underlying cause, may be nil
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *TransportError) Is(target error) bool {
	return target == e.Reason.sentinel()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteFault reports an exception raised inside the provider. By the time
// a caller sees it the fault has been cleared and the runtime is usable.
type RemoteFault struct {
	Op         Operation
	Diagnostic string
}

func (e *RemoteFault) Error() string {
	return fmt.Sprintf("%s: remote fault: %s", e.Op, e.Diagnostic)
}

func (e *RemoteFault) Is(target error) bool {
	return target == ErrRemoteFault
}
